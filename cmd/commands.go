package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/client"
	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/service"
	"github.com/rryowa/storefront/internal/storage"
)

type cli struct {
	auth   *service.AuthService
	client *client.Client
	store  *storage.CredentialStore
	log    *zap.SugaredLogger
}

type command struct {
	summary string
	run     func(c *cli, ctx context.Context, args []string) error
}

//nolint:gochecknoglobals // command table
var commands = map[string]command{
	"status":                 {"show the current session", (*cli).status},
	"login":                  {"sign in: -email -password", (*cli).login},
	"verify-2fa":             {"complete a second-factor challenge: -email -code", (*cli).verifyTwoFactor},
	"register":               {"create an account: -email -password [-first -last -phone]", (*cli).register},
	"logout":                 {"sign out and forget stored credentials", (*cli).logout},
	"whoami":                 {"print the profile of the signed-in user", (*cli).whoami},
	"update-profile":         {"change profile fields: -first -last -phone -address-title -address -city -district -postal-code", (*cli).updateProfile},
	"change-password":        {"change the password: -current -new", (*cli).changePassword},
	"delete-account":         {"delete the account: -password", (*cli).deleteAccount},
	"password-reset":         {"request a reset link: -email", (*cli).passwordReset},
	"password-reset-confirm": {"set a new password: -token -new", (*cli).passwordResetConfirm},
	"verify-email":           {"confirm the e-mail address: -token", (*cli).verifyEmail},
	"resend-verification":    {"send the verification e-mail again: -email", (*cli).resendVerification},
	"2fa-enable":             {"turn on two-factor authentication", (*cli).enableTwoFactor},
	"2fa-disable":            {"turn off two-factor authentication", (*cli).disableTwoFactor},
	"get":                    {"GET an arbitrary API path through the authenticated client: get <path>", (*cli).get},
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "usage: storefront <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-24s %s\n", name, commands[name].summary)
	}
}

func (c *cli) run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		usage()
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd.run(c, ctx, args)
}

func (c *cli) status(ctx context.Context, _ []string) error {
	sess := c.auth.CheckAuth(ctx)
	if !sess.IsAuthenticated {
		color.Yellow("anonymous")
		return nil
	}

	color.Green("signed in as %s", sess.User.Email)
	if exp, ok := c.store.Get().AccessExpiresAt(); ok {
		fmt.Printf("access token expires at %s\n", exp.Local().Format("2006-01-02 15:04:05"))
	}
	if sess.User.TwoFactorEnabled {
		fmt.Println("two-factor authentication is on")
	}
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.auth.Login(ctx, models.LoginRequest{
		Email:    openapi_types.Email(*email),
		Password: *password,
	})
	if err != nil {
		return err
	}

	if res.RequiresTwoFactor() {
		color.Yellow("%s", res.Message)
		fmt.Printf("complete with: storefront verify-2fa -email %s -code <code>\n", res.Email)
		return nil
	}
	if res.User != nil {
		color.Green("signed in as %s", res.User.Email)
		return nil
	}
	color.Green("%s", res.Message)
	return nil
}

func (c *cli) verifyTwoFactor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-2fa", flag.ContinueOnError)
	email := fs.String("email", "", "e-mail from the challenge")
	code := fs.String("code", "", "verification code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.VerifyTwoFactor(ctx, openapi_types.Email(*email), *code)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var req models.RegisterRequest
	email := fs.String("email", "", "account e-mail")
	fs.StringVar(&req.Password, "password", "", "password")
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	fs.StringVar(&req.Phone, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.Email = openapi_types.Email(*email)
	req.Password2 = req.Password

	resp, err := c.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) logout(ctx context.Context, _ []string) error {
	if err := c.auth.Logout(ctx); err != nil {
		return err
	}
	color.Green("signed out")
	return nil
}

func (c *cli) whoami(ctx context.Context, _ []string) error {
	user, err := c.auth.GetCurrentUser(ctx)
	if err != nil {
		return err
	}
	return printJSON(user)
}

func (c *cli) updateProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	var upd models.ProfileUpdate
	fields := map[string]**string{
		"first":         &upd.FirstName,
		"last":          &upd.LastName,
		"phone":         &upd.Phone,
		"address-title": &upd.AddressTitle,
		"address":       &upd.Address,
		"city":          &upd.City,
		"district":      &upd.District,
		"postal-code":   &upd.PostalCode,
	}
	for name, dst := range fields {
		fs.Func(name, "new "+strings.ReplaceAll(name, "-", " "), func(v string) error {
			*dst = &v
			return nil
		})
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := c.auth.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	return printJSON(user)
}

func (c *cli) changePassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	var req models.ChangePasswordRequest
	fs.StringVar(&req.CurrentPassword, "current", "", "current password")
	fs.StringVar(&req.NewPassword, "new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.ChangePassword(ctx, req)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) deleteAccount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.DeleteAccount(ctx, *password)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) passwordReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("password-reset", flag.ContinueOnError)
	email := fs.String("email", "", "account e-mail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.RequestPasswordReset(ctx, openapi_types.Email(*email))
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	return nil
}

func (c *cli) passwordResetConfirm(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("password-reset-confirm", flag.ContinueOnError)
	token := fs.String("token", "", "reset token")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.ResetPassword(ctx, *token, *next)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) verifyEmail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-email", flag.ContinueOnError)
	token := fs.String("token", "", "verification token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.VerifyEmail(ctx, *token)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) resendVerification(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resend-verification", flag.ContinueOnError)
	email := fs.String("email", "", "account e-mail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.auth.ResendVerificationEmail(ctx, openapi_types.Email(*email))
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	return nil
}

func (c *cli) enableTwoFactor(ctx context.Context, _ []string) error {
	resp, err := c.auth.EnableTwoFactor(ctx)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) disableTwoFactor(ctx context.Context, _ []string) error {
	resp, err := c.auth.DisableTwoFactor(ctx)
	if err != nil {
		return err
	}
	color.Green("%s", resp.Message)
	return nil
}

func (c *cli) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: storefront get <path>")
	}

	resp, err := c.client.Do(ctx, client.Request{Method: http.MethodGet, Path: args[0]})
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(resp.Body, '\n'))
	return err
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		color.Red("%s (HTTP %d)", apiErr.Message(), apiErr.Status)
		fields := apiErr.FieldErrors()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", k, strings.Join(fields[k], "; "))
		}
		return
	}
	if errors.Is(err, client.ErrRefreshFailed) {
		color.Red("session expired, sign in again")
		return
	}
	color.Red("%v", err)
}
