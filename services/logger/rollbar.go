// Package logsvc reports log entries to Rollbar and mirrors them on a standard logger.
package logsvc

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type RollbarLogger struct {
	std   *log.Logger
	debug bool // print Debug entries
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std, debug: conf.Debug && !conf.TestMode}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is one log call split the way rollbar wants it.
type entry struct {
	msg    string
	err    error
	extras map[string]interface{}
	person *rollbar.Person // nil when no User was given
}

// parse splits args into at most one error, the merged extras and the User the entry
// relates to. Typed application errors add their own fields to the extras.
// parse never writes global rollbar state.
func parse(msg string, args []interface{}) entry {
	e := entry{msg: msg, extras: make(map[string]interface{})}
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if e.person == nil {
				e.person = &rollbar.Person{Id: v.ID, Username: v.Username, Email: v.Email}
			}
		case map[string]interface{}:
			for k, val := range v {
				e.extras[k] = val
			}
		case error:
			if e.err == nil {
				e.err = v
			} else {
				e.extras["other_error"] = v.Error()
			}
		case nil:
		default:
			e.extras[fmt.Sprintf("arg%d", len(e.extras))] = v
		}
	}
	addErrorFields(e.err, e.extras)
	return e
}

func addErrorFields(err error, extras map[string]interface{}) {
	if err == nil {
		return
	}
	var (
		nErr *core.NotificationError
		pErr *core.PersistenceError
		vErr *core.ValidationError
	)
	switch {
	case stderrors.As(err, &nErr):
		extras["recipient"] = nErr.Recipient
	case stderrors.As(err, &pErr):
		extras["operation"] = pErr.Op
	case stderrors.As(err, &vErr):
		for _, f := range vErr.Fields {
			extras["field."+f.Field] = f.Error
		}
	}
}

// report sends e to rollbar with its person attached to the item only.
func (e entry) report(level string) {
	ctx := context.Background()
	if e.person != nil {
		ctx = rollbar.NewPersonContext(ctx, e.person)
	}
	if e.err == nil {
		rollbar.MessageWithExtrasAndContext(ctx, level, e.msg, e.extras)
		return
	}

	custom := make(map[string]interface{}, len(e.extras)+1)
	for k, v := range e.extras {
		custom[k] = v
	}
	custom["message"] = e.msg
	rollbar.ErrorWithStackSkipWithExtrasAndContext(ctx, level, e.err, 3, custom)
}

func (l RollbarLogger) print(level string, e entry) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(": ")
	b.WriteString(e.msg)
	if e.err != nil && !strings.Contains(e.msg, e.err.Error()) {
		b.WriteString(" | ")
		b.WriteString(e.err.Error())
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.extras[k])
	}
	l.std.Println(b.String())
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	e := parse(msg, args)
	e.report(rollbar.DEBUG)
	l.print("DEBUG", e)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	e := parse(msg, args)
	e.report(rollbar.INFO)
	l.print("INFO", e)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	e := parse(msg, args)
	e.report(rollbar.WARN)
	l.print("WARN", e)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	e := parse(msg, args)
	e.report(rollbar.ERR)
	l.print("ERROR", e)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := parse(msg, args)
	e.report(rollbar.CRIT)
	rollbar.Wait()
	l.print("FATAL", e)
	l.std.Fatal(msg)
}
