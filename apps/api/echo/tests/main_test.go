package tests

import (
	"os"
	"testing"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

func TestMain(m *testing.M) {
	if os.Getenv("ENV") == "" {
		_ = os.Setenv("ENV", "TEST")
	}
	conf := core.NewConfig()
	core.ParseEmailTemplates(conf, nil)
	user.LoadCommonPasswords(nil)

	os.Exit(m.Run())
}
