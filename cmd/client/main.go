// Command client is an interactive shell for the session auth server. It
// demonstrates the full flow from the user's point of view: register, login,
// call a protected resource (with silent token refresh underneath), logout.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/authflow/go-session-auth/client"
	"github.com/authflow/go-session-auth/internal/config"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	baseURL := config.GetEnv("API_BASE_URL", "http://localhost:5000")

	c, err := client.New(baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create client:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if c.Resume(ctx) {
		fmt.Println("Resumed existing session")
	}

	runREPL(ctx, c, bufio.NewReader(os.Stdin))
}

func runREPL(ctx context.Context, c *client.Client, reader *bufio.Reader) {
	for {
		fmt.Printf("auth %s> ", status(c))
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "help":
			if c.LoggedIn() {
				fmt.Println("Available commands: whoami, logout, exit")
			} else {
				fmt.Println("Available commands: register, login, exit")
			}
		case "register":
			doRegister(ctx, c, reader)
		case "login":
			doLogin(ctx, c, reader)
		case "whoami":
			doWhoami(ctx, c)
		case "logout":
			if err := c.Logout(ctx); err != nil {
				fmt.Println("logout failed:", err)
			} else {
				fmt.Println("Logged out")
			}
		case "exit", "quit":
			return
		default:
			fmt.Println("Unknown command, type 'help'")
		}
	}
}

func status(c *client.Client) string {
	if c.LoggedIn() {
		return "[logged in]"
	}
	return "[anonymous]"
}

func doRegister(ctx context.Context, c *client.Client, reader *bufio.Reader) {
	email, password, err := promptCredentials(reader)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}
	if err := c.Register(ctx, email, password); err != nil {
		fmt.Println("registration failed:", err)
		return
	}
	fmt.Println("Registered, you can now log in")
}

func doLogin(ctx context.Context, c *client.Client, reader *bufio.Reader) {
	email, password, err := promptCredentials(reader)
	if err != nil {
		fmt.Println("input error:", err)
		return
	}
	if err := c.Login(ctx, email, password); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			fmt.Println("Invalid email or password")
		} else {
			fmt.Println("login failed:", err)
		}
		return
	}
	fmt.Println("Logged in")
}

func doWhoami(ctx context.Context, c *client.Client) {
	resp, err := c.Protected(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			fmt.Println("Session expired, please log in again")
		} else {
			fmt.Println("request failed:", err)
		}
		return
	}
	fmt.Println("You are", resp.Email)
}

func promptCredentials(reader *bufio.Reader) (string, string, error) {
	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return "", "", err
	}

	fmt.Print("Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", "", err
	}

	return strings.TrimSpace(email), string(pw), nil
}
