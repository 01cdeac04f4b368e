// Package main issues and inspects credgate session tokens with the key
// configured in SESSION_SECRET.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"credgate/internal/platform/config"
	"credgate/internal/platform/logger"
	"credgate/internal/session"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Role      string            `json:"role"`
	Subject   string            `json:"subject"`
	IssuedAt  string            `json:"issued_at,omitempty"`
	ExpiresAt string            `json:"expires_at,omitempty"`
	Usage     map[string]string `json:"usage,omitempty"`
}

func main() {
	issueCmd := flag.NewFlagSet("issue", flag.ExitOnError)
	issueRole := issueCmd.String("role", session.RoleAdmin, "Session role: admin or wx_user")
	issueSubject := issueCmd.String("subject", "", "Subject the token is issued to (required)")
	issueDays := issueCmd.Int("days", 0, "Validity in days, at most the role lifetime. Defaults to the role lifetime.")
	issueJSON := issueCmd.Bool("json", false, "Output as JSON")

	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	inspectRole := inspectCmd.String("role", session.RoleAdmin, "Role the token must carry")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config.LoadEnv(context.Background(), logger.New("warn"), ".env")
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "SESSION_SECRET is not set")
		os.Exit(1)
	}
	codec, err := session.NewCodec([]byte(secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	issuer := session.NewIssuer(codec)

	switch os.Args[1] {
	case "issue":
		issueCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		if err := issue(issuer, *issueRole, *issueSubject, *issueDays, *issueJSON); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "inspect":
		inspectCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		if inspectCmd.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "inspect requires exactly one token argument")
			os.Exit(1)
		}
		if err := inspect(codec, issuer, *inspectRole, inspectCmd.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func issue(issuer *session.Issuer, role, subject string, days int, asJSON bool) error {
	if days == 0 {
		days, _ = session.ValidDays(role)
	}
	token, err := issuer.Issue(subject, role, days)
	if err != nil {
		return err
	}

	out := tokenOutput{
		Token:     token,
		Role:      role,
		Subject:   subject,
		ExpiresAt: time.Now().AddDate(0, 0, days).UTC().Format(time.RFC3339),
	}
	if role == session.RoleAdmin {
		out.Usage = map[string]string{
			"header": "Authorization: Bearer " + token,
			"curl":   fmt.Sprintf("curl -H 'Authorization: Bearer %s' http://localhost:8080/admin/authorizers", token),
		}
	} else {
		out.Usage = map[string]string{
			"cookie": session.UserCookieName + "=" + token,
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Println(token)
	return nil
}

// inspect validates token for role and prints its decoded fields.
func inspect(codec *session.Codec, issuer *session.Issuer, role, token string) error {
	subject, err := issuer.Validate(context.Background(), token, role)
	if err != nil {
		return err
	}
	out := tokenOutput{Role: role, Subject: subject}

	// Plaintext is "role:subject:expiry".
	if plaintext, issuedAt, err := codec.Open(token); err == nil {
		out.IssuedAt = issuedAt.UTC().Format(time.RFC3339)
		if i := strings.LastIndex(plaintext, ":"); i >= 0 {
			if expiry, err := strconv.ParseInt(plaintext[i+1:], 10, 64); err == nil {
				out.ExpiresAt = time.Unix(expiry, 0).UTC().Format(time.RFC3339)
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printUsage() {
	fmt.Println(`Usage: tokengen <command> [options]

Commands:
  issue     Issue a session token
  inspect   Validate a token and print its subject, issue time and expiry

Examples:
  tokengen issue -role admin -subject 42 -days 7
  tokengen issue -role wx_user -subject oUser123 -json
  tokengen inspect -role admin <token>

SESSION_SECRET must hold the same secret the server uses.`)
}
