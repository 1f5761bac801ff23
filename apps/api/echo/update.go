package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/update"
	mediasvc "github.com/trezcool/shule/services/media"
)

const imageField = "image"

type updateApi struct {
	*Server
}

func registerUpdateAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := updateApi{Server: s}

	ug := g.Group("/updates")
	ug.GET("", api.query)
	ug.POST("", api.create, jwt, adminMiddleware())
}

func (api *updateApi) query(ctx echo.Context) error {
	filter := new(update.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []update.Update{})
	}

	updates, err := api.UpdateSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying updates")
	}
	if updates == nil {
		updates = []update.Update{}
	}
	return ctx.JSON(http.StatusOK, updates)
}

// create accepts JSON with an image URL, or a multipart form with an image file.
func (api *updateApi) create(ctx echo.Context) error {
	var data update.NewUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUpdate")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	var img *update.Upload
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile(imageField)
		if err != nil && err != http.ErrMissingFile {
			return errors.Wrap(err, "reading image file")
		}
		if fh != nil {
			file, err := fh.Open()
			if err != nil {
				return errors.Wrap(err, "opening image file")
			}
			defer file.Close()

			ctype, err := mediasvc.DetectContentType(file)
			if err != nil {
				return err
			}
			img = &update.Upload{Filename: fh.Filename, ContentType: ctype, Size: fh.Size, Content: file}
		}
	}

	u, err := api.UpdateSvc.Create(ctx.Request().Context(), data, img)
	if err != nil {
		return errors.Wrap(err, "creating update")
	}

	api.record(ctx, fmt.Sprintf("Posted %s %q", strings.ToLower(u.Category), u.Title))
	return ctx.JSON(http.StatusCreated, u)
}
