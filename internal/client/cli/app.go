package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abhishek00112233/LMS-Backend/internal/client"
	"github.com/abhishek00112233/LMS-Backend/internal/dto"
)

// App holds the client state for one terminal session.
type App struct {
	api      *client.API
	sessions *client.SessionStore
	session  *client.Session
	in       *bufio.Reader
	out      io.Writer
	password PasswordReader
	now      func() time.Time
}

// NewApp restores any cached session from sessions.
func NewApp(api *client.API, sessions *client.SessionStore, in io.Reader, out io.Writer, password PasswordReader) (*App, error) {
	sess, err := sessions.Load()
	if err != nil {
		return nil, err
	}

	return &App{
		api:      api,
		sessions: sessions,
		session:  sess,
		in:       bufio.NewReader(in),
		out:      out,
		password: password,
		now:      time.Now,
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) status() string {
	if a.session == nil {
		return "guest"
	}
	return fmt.Sprintf("%s (%s)", a.session.User.Email, a.session.User.Role)
}

// Register asks for the signup fields and requests a code.
func (a *App) Register(ctx context.Context) error {
	role, err := readLine(a.in, a.out, "Role (student/instructor/admin)")
	if err != nil {
		return err
	}
	name, err := readLine(a.in, a.out, "Name")
	if err != nil {
		return err
	}
	email, err := readLine(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := readPassword(a.password, a.in, a.out)
	if err != nil {
		return err
	}

	msg, err := a.api.SendOTP(ctx, dto.SendOTPRequest{Role: role, Name: name, Email: email, Password: password})
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	fmt.Fprintln(a.out, "Run 'verify' with the code from the email.")
	return nil
}

// Verify submits the emailed code.
func (a *App) Verify(ctx context.Context) error {
	email, err := readLine(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	code, err := readLine(a.in, a.out, "OTP")
	if err != nil {
		return err
	}

	msg, err := a.api.VerifyOTP(ctx, email, code)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

// Login authenticates and caches the summary on disk.
func (a *App) Login(ctx context.Context) error {
	role, err := readLine(a.in, a.out, "Role (student/instructor/admin)")
	if err != nil {
		return err
	}
	email, err := readLine(a.in, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := readPassword(a.password, a.in, a.out)
	if err != nil {
		return err
	}

	resp, err := a.api.Login(ctx, dto.LoginRequest{Role: role, Email: email, Password: password})
	if err != nil {
		return a.report(err)
	}

	sess := &client.Session{User: resp.User, LoggedInAt: a.now().UTC()}
	if err := a.sessions.Save(sess); err != nil {
		return a.report(err)
	}
	a.session = sess

	fmt.Fprintf(a.out, "%s. Welcome, %s!\n", resp.Message, resp.User.Name)
	return nil
}

// WhoAmI prints the cached session.
func (a *App) WhoAmI(context.Context) error {
	if a.session == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	u := a.session.User
	fmt.Fprintf(a.out, "%s <%s>, role %s, id %s, since %s\n",
		u.Name, u.Email, u.Role, u.ID, a.session.LoggedInAt.Format(time.RFC3339))
	return nil
}

// Logout forgets the cached session.
func (a *App) Logout(context.Context) error {
	if err := a.sessions.Clear(); err != nil {
		return a.report(err)
	}
	a.session = nil
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) report(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(a.out, "Error: %s\n", apiErr.Error())
	} else {
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	return err
}

// Run starts the read-eval-print loop and returns on exit or end of input.
func (a *App) Run(ctx context.Context) {
	if a.isLoggedIn() {
		fmt.Fprintf(a.out, "Welcome back, %s.\n", a.session.User.Name)
	}
	runREPL(ctx, a)
}

func runREPL(ctx context.Context, a *App) {
	for {
		fmt.Fprintf(a.out, "lms [%s]> ", a.status())
		line, err := a.in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			fmt.Fprintln(a.out)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(a.out, "Available commands: whoami, logout, login, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: register, verify, login, whoami, exit")
			}
		case "register":
			_ = a.Register(ctx)
		case "verify":
			_ = a.Verify(ctx)
		case "login":
			_ = a.Login(ctx)
		case "whoami":
			_ = a.WhoAmI(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}
