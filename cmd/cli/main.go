package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "user":
		handleUser(args)
	case "article":
		handleArticle(args)
	case "audit":
		listAuditLog(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: draftmill auth <login|logout|whoami>")
		return
	}

	switch args[0] {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "whoami":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: draftmill user <list|add|disable>")
		return
	}

	switch args[0] {
	case "list":
		listUsers()
	case "add":
		addUser(args[1:])
	case "disable":
		disableUser(args[1:])
	default:
		fmt.Printf("unknown user command: %s\n", args[0])
	}
}

func handleArticle(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: draftmill article <list|create|advance|show>")
		return
	}

	switch args[0] {
	case "list":
		listArticles()
	case "create":
		createArticle(args[1:])
	case "advance":
		advanceArticle(args[1:])
	case "show":
		showArticle(args[1:])
	default:
		fmt.Printf("unknown article command: %s\n", args[0])
	}
}

// Auth commands

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	code := fs.String("code", "", "TOTP code (if 2FA is enabled)")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := postJSON("/api/auth/login", map[string]string{
		"email":    *email,
		"password": *password,
	}, false)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("✗ Login failed: %v\n", result["error"])
		return
	}

	if result["status"] == "needs_2fa" {
		if *code == "" {
			fmt.Println("✗ 2FA required: retry with -code <totp>")
			return
		}
		pendingID, _ := result["pendingId"].(string)
		result, status, err = postJSON("/api/auth/2fa", map[string]string{
			"pendingId": pendingID,
			"code":      *code,
		}, false)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if status != http.StatusOK {
			fmt.Printf("✗ 2FA verification failed: %v\n", result["error"])
			return
		}
	}

	token, _ := result["accessToken"].(string)
	sessionID, _ := result["sessionId"].(string)
	if token == "" {
		fmt.Printf("✗ Login failed: %v\n", result)
		return
	}
	if err := saveCredentials(token, sessionID); err != nil {
		fmt.Printf("Error: failed to store credentials: %v\n", err)
		return
	}
	fmt.Printf("✓ Logged in as: %s\n", *email)
}

func logoutUser() {
	token, sessionID := loadCredentials()
	if token != "" && sessionID != "" {
		_, _, _ = postJSON("/api/auth/logout", map[string]string{"sessionId": sessionID}, true)
	}
	os.Remove(credentialsFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	result, status, err := getJSON("/api/auth/me")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ %v (%v)\n", result["email"], result["role"])
}

// User commands

func listUsers() {
	resp, err := doGet("/api/users")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		printErrorBody(resp)
		return
	}

	var users []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&users)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tSTATUS\t2FA")
	for _, u := range users {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", u["email"], u["name"], u["role"], u["status"], u["twoFactorEnabled"])
	}
	w.Flush()
}

func addUser(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "initial password")
	role := fs.String("role", "user", "role (user|admin)")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	result, status, err := postJSON("/api/users", map[string]string{
		"email":    *email,
		"name":     *name,
		"password": *password,
		"role":     *role,
	}, true)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusCreated {
		fmt.Printf("✗ Failed to add user: %v\n", result["error"])
		return
	}
	fmt.Printf("✓ User created: %s\n", *email)
}

func disableUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: draftmill user disable <email>")
		return
	}

	result, status, err := putJSON("/api/users/"+args[0]+"/status", map[string]string{"status": "disabled"})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("✗ Failed to disable user: %v\n", result["error"])
		return
	}
	fmt.Printf("✓ User disabled: %s\n", args[0])
}

// Article commands

func listArticles() {
	resp, err := doGet("/api/articles")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		printErrorBody(resp)
		return
	}

	var articles []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&articles)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tSTAGE\tUPDATED")
	for _, a := range articles {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", a["ID"], a["Topic"], a["Stage"], a["UpdatedAt"])
	}
	w.Flush()
}

func createArticle(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	topic := fs.String("topic", "", "article topic")
	fs.Parse(args)

	if *topic == "" {
		fmt.Println("Error: topic is required")
		fs.PrintDefaults()
		return
	}

	result, status, err := postJSON("/api/articles", map[string]string{"topic": *topic}, true)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusCreated {
		fmt.Printf("✗ Failed to create article: %v\n", result["error"])
		return
	}
	fmt.Printf("✓ Article created: %v\n", result["ID"])
}

func advanceArticle(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: draftmill article advance <article-id>")
		return
	}

	result, status, err := postJSON("/api/articles/"+args[0]+"/advance", map[string]string{}, true)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("✗ Advance failed: %v\n", result["error"])
		return
	}
	fmt.Printf("✓ Article %v advanced to stage: %v\n", args[0], result["Stage"])
}

func showArticle(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: draftmill article show <article-id>")
		return
	}

	result, status, err := getJSON("/api/articles/" + args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("✗ %v\n", result["error"])
		return
	}

	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(pretty))
}

// Audit commands

func listAuditLog(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	email := fs.String("email", "", "filter by user email")
	fs.Parse(args)

	path := "/api/audit"
	if *email != "" {
		path += "?email=" + *email
	}

	resp, err := doGet(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		printErrorBody(resp)
		return
	}

	var entries []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&entries)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tACTION\tIP")
	for _, e := range entries {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", e["Timestamp"], e["UserEmail"], e["Action"], e["IPAddress"])
	}
	w.Flush()
}

// HTTP helpers

func apiURL() string {
	if url := os.Getenv("DRAFTMILL_API"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func doGet(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, apiURL()+path, nil)
	if err != nil {
		return nil, err
	}
	addAuthHeaders(req)
	return http.DefaultClient.Do(req)
}

func getJSON(path string) (map[string]interface{}, int, error) {
	resp, err := doGet(path)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func postJSON(path string, payload map[string]string, authed bool) (map[string]interface{}, int, error) {
	data, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, apiURL()+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		addAuthHeaders(req)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func putJSON(path string, payload map[string]string) (map[string]interface{}, int, error) {
	data, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPut, apiURL()+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	addAuthHeaders(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func printErrorBody(resp *http.Response) {
	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	fmt.Printf("✗ Request failed (%d): %v\n", resp.StatusCode, result["error"])
}

// Credential storage

type storedCredentials struct {
	AccessToken string `json:"accessToken"`
	SessionID   string `json:"sessionId"`
}

func credentialsFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".draftmill", "credentials.json")
}

func saveCredentials(token, sessionID string) error {
	if err := os.MkdirAll(filepath.Dir(credentialsFile()), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(storedCredentials{AccessToken: token, SessionID: sessionID})
	if err != nil {
		return err
	}
	return os.WriteFile(credentialsFile(), data, 0600)
}

func loadCredentials() (string, string) {
	data, err := os.ReadFile(credentialsFile())
	if err != nil {
		return "", ""
	}
	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", ""
	}
	return creds.AccessToken, creds.SessionID
}

func addAuthHeaders(req *http.Request) {
	token, sessionID := loadCredentials()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
}

func printUsage() {
	fmt.Print(`draftmill CLI

Usage:
  draftmill <command> [options]

Commands:
  auth     Authentication (login, logout, whoami)
  user     User management (list, add, disable) - admin access required
  article  Content pipeline (list, create, advance, show)
  audit    Audit log - requires view:audit_log
  help     Show this help message

Environment Variables:
  DRAFTMILL_API    API endpoint (default: http://localhost:8080)

Examples:
  draftmill auth login -email writer@org.com -password secret
  draftmill auth login -email writer@org.com -password secret -code 123456
  draftmill article create -topic "Remote onboarding checklists"
  draftmill article advance 1b6e4c1e-...
  draftmill user list
`)
}
