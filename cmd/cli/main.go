package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"
)

type user struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      user      `json:"user"`
}

type stats struct {
	TotalUsers    int            `json:"totalUsers"`
	ActiveUsers   int            `json:"activeUsers"`
	InactiveUsers int            `json:"inactiveUsers"`
	ByRole        map[string]int `json:"byRole"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	c := newAPIClient(getAPIURL(), loadToken())
	if err := run(c, os.Stdout, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func run(c *apiClient, out io.Writer, command string, args []string) error {
	switch command {
	case "auth":
		return handleAuth(c, out, args)
	case "users":
		return handleUsers(c, out, args)
	case "stats":
		return showStats(c, out)
	case "help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func handleAuth(c *apiClient, out io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: admindash auth <login|logout|who>")
	}

	switch args[0] {
	case "login":
		return loginUser(c, out, args[1:])
	case "logout":
		if err := os.Remove(tokenFile()); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Fprintln(out, "✓ Logged out")
		return nil
	case "who":
		return whoAmI(c, out)
	default:
		return fmt.Errorf("unknown auth command: %s", args[0])
	}
}

func handleUsers(c *apiClient, out io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: admindash users <list|get|create|update|delete>")
	}

	switch args[0] {
	case "list":
		return listUsers(c, out)
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: admindash users get <id>")
		}
		return getUser(c, out, args[1])
	case "create":
		return createUser(c, out, args[1:])
	case "update":
		if len(args) < 2 {
			return fmt.Errorf("usage: admindash users update <id> [flags]")
		}
		return updateUser(c, out, args[1], args[2:])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: admindash users delete <id>")
		}
		return deleteUser(c, out, args[1])
	default:
		return fmt.Errorf("unknown users command: %s", args[0])
	}
}

// Auth commands
func loginUser(c *apiClient, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *password == "" {
		fs.PrintDefaults()
		return fmt.Errorf("username and password are required")
	}

	var res loginResult
	payload := map[string]string{"username": *username, "password": *password}
	if err := c.do(http.MethodPost, "/auth/login", payload, &res); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := saveToken(res.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintf(out, "✓ Logged in as %s (%s), session valid until %s\n",
		res.User.Username, res.User.Role, res.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func whoAmI(c *apiClient, out io.Writer) error {
	if c.token == "" {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	var me user
	if err := c.do(http.MethodGet, "/auth/me", nil, &me); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s <%s> role=%s status=%s\n", me.Username, me.Email, me.Role, me.Status)
	return nil
}

// User commands
func listUsers(c *apiClient, out io.Writer) error {
	var users []user
	if err := c.do(http.MethodGet, "/users", nil, &users); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tROLE\tSTATUS")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Email, u.Role, u.Status)
	}
	return w.Flush()
}

func getUser(c *apiClient, out io.Writer, id string) error {
	var u user
	if err := c.do(http.MethodGet, "/users/"+id, nil, &u); err != nil {
		return err
	}
	printUser(out, u)
	return nil
}

func createUser(c *apiClient, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	username := fs.String("username", "", "username (defaults to the email local part)")
	role := fs.String("role", "", "admin, user or moderator")
	status := fs.String("status", "", "active or inactive")
	password := fs.String("password", "", "initial password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fs.PrintDefaults()
		return fmt.Errorf("email is required")
	}

	payload := map[string]string{"name": *name, "email": *email}
	for k, v := range map[string]string{"username": *username, "role": *role, "status": *status, "password": *password} {
		if v != "" {
			payload[k] = v
		}
	}

	var u user
	if err := c.do(http.MethodPost, "/users", payload, &u); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ User created: %s\n", u.ID)
	printUser(out, u)
	return nil
}

func updateUser(c *apiClient, out io.Writer, id string, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.String("name", "", "display name")
	fs.String("email", "", "email address")
	fs.String("username", "", "username")
	fs.String("role", "", "admin, user or moderator")
	fs.String("status", "", "active or inactive")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// only flags given on the command line are sent
	payload := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		payload[f.Name] = f.Value.String()
	})
	if len(payload) == 0 {
		fs.PrintDefaults()
		return fmt.Errorf("nothing to update")
	}

	var u user
	if err := c.do(http.MethodPut, "/users/"+id, payload, &u); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ User updated")
	printUser(out, u)
	return nil
}

func deleteUser(c *apiClient, out io.Writer, id string) error {
	var res struct {
		Message string `json:"message"`
	}
	if err := c.do(http.MethodDelete, "/users/"+id, nil, &res); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s\n", res.Message)
	return nil
}

func showStats(c *apiClient, out io.Writer) error {
	var st stats
	if err := c.do(http.MethodGet, "/dashboard/stats", nil, &st); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total\t%d\n", st.TotalUsers)
	fmt.Fprintf(w, "Active\t%d\n", st.ActiveUsers)
	fmt.Fprintf(w, "Inactive\t%d\n", st.InactiveUsers)
	for role, n := range st.ByRole {
		fmt.Fprintf(w, "Role %s\t%d\n", role, n)
	}
	return w.Flush()
}

func printUser(out io.Writer, u user) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", u.ID)
	fmt.Fprintf(w, "Name\t%s\n", u.Name)
	fmt.Fprintf(w, "Email\t%s\n", u.Email)
	fmt.Fprintf(w, "Username\t%s\n", u.Username)
	fmt.Fprintf(w, "Role\t%s\n", u.Role)
	fmt.Fprintf(w, "Status\t%s\n", u.Status)
	fmt.Fprintf(w, "Created\t%s\n", u.CreatedAt.Format(time.RFC3339))
	w.Flush()
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `admindash CLI

Usage:
  admindash <command> [options]

Commands:
  auth       Session management (login, logout, who)
  users      User management (list, get, create, update, delete)
  stats      Dashboard statistics
  help       Show this help message

Environment Variables:
  ADMINDASH_API         API endpoint (default: http://localhost:5000/api)
  ADMINDASH_TOKEN_FILE  Token location (default: ~/.admindash/token)

Examples:
  admindash auth login -username admin -password admin123
  admindash users list
  admindash users create -name "Jane Smith" -email jane@example.com -role user
  admindash users update <id> -status inactive
  admindash users delete <id>
  admindash stats
`)
}
