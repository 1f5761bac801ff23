// Package update manages the news feed: news, announcements and events with an image.
package update

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// Categories
const (
	CategoryNews         = "News"
	CategoryAnnouncement = "Announcement"
	CategoryEvent        = "Event"
)

var (
	// errors
	errImageRequired = core.NewValidationError(nil, core.FieldError{Field: "image", Error: "an image file or URL is required"})
	errNotAnImage    = core.NewValidationError(nil, core.FieldError{Field: "image", Error: "only image files are allowed"})
	ErrImageTooLarge = errors.New("image is too large")
)

type Update struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"` // URL
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewUpdate struct {
	Title    string `json:"title" form:"title" validate:"required,notblank,max=100"`
	Content  string `json:"content" form:"content" validate:"required,min=10,max=1000"`
	Category string `json:"category" form:"category" validate:"required,oneof=News Announcement Event"`
	Image    string `json:"image" form:"image_url" validate:"omitempty,url"`
}

func (nu *NewUpdate) Validate(validate *validator.Validate) error {
	nu.Title = core.CleanString(nu.Title)
	nu.Content = core.CleanString(nu.Content)
	nu.Category = core.CleanString(nu.Category)
	nu.Image = core.CleanString(nu.Image)
	return validate.Struct(nu)
}

// Upload is an uploaded image file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// MediaStore keeps uploaded files and returns the URL they are served from.
type MediaStore interface {
	Save(ctx context.Context, name string, content io.Reader) (url string, err error)
	Delete(ctx context.Context, url string) error
}

type QueryFilter struct {
	Category string `query:"category"`
}

type (
	Repository interface {
		// QueryUpdates returns updates newest first.
		QueryUpdates(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Update, error)
		CreateUpdate(ctx context.Context, u Update, exec ...core.DBExecutor) (Update, error)
	}

	ServiceInterface interface {
		Query(ctx context.Context, filter *QueryFilter) ([]Update, error)
		// Create saves a new Update; img, when set, is stored and replaces nu.Image.
		Create(ctx context.Context, nu NewUpdate, img *Upload) (Update, error)
	}

	Service struct {
		repo          Repository
		media         MediaStore
		maxUploadSize int64
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, media MediaStore, conf *core.Config) *Service {
	return &Service{repo: repo, media: media, maxUploadSize: conf.Media.MaxUploadSize}
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Update, error) {
	return svc.repo.QueryUpdates(ctx, filter)
}

func (svc *Service) Create(ctx context.Context, nu NewUpdate, img *Upload) (Update, error) {
	imageURL := nu.Image
	if img != nil {
		if !strings.HasPrefix(img.ContentType, "image/") {
			return Update{}, errNotAnImage
		}
		if svc.maxUploadSize > 0 && img.Size > svc.maxUploadSize {
			return Update{}, core.NewValidationError(nil, core.FieldError{Field: "image", Error: ErrImageTooLarge.Error()})
		}

		name := uuid.New().String() + strings.ToLower(path.Ext(img.Filename))
		url, err := svc.media.Save(ctx, path.Join("updates", name), img.Content)
		if err != nil {
			return Update{}, pkgerrors.Wrap(err, "saving image")
		}
		imageURL = url
	}
	if imageURL == "" {
		return Update{}, errImageRequired
	}

	now := time.Now().UTC()
	u, err := svc.repo.CreateUpdate(ctx, Update{
		Title:     nu.Title,
		Image:     imageURL,
		Content:   nu.Content,
		Category:  nu.Category,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if img != nil {
			_ = svc.media.Delete(ctx, imageURL)
		}
		return Update{}, pkgerrors.Wrap(err, "creating update")
	}
	return u, nil
}
