package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser updates or creates an admin account and (re)activates it.
func (cli *commandLine) addUser(name, uname, email, pwd string, isOwner bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	if name == "" {
		name = uname
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Name:      name,
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}

	role := user.RoleAdmin
	if isOwner {
		role = user.RoleAdminOwner
	}
	if !usr.HasRole(role) {
		usr.Roles = append(usr.Roles, role)
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("admin account %q saved", usr.Username))
	return nil
}
