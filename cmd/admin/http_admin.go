package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func agentsCmd(args []string) {
	fs := flag.NewFlagSet("agents", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/agents")
}

func spaceCmd(args []string) {
	fs := flag.NewFlagSet("space", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	agentID := fs.String("agent", "", "agent id (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*agentID) == "" {
		fmt.Fprintln(os.Stderr, "missing -agent")
		os.Exit(2)
	}
	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/agents/" + url.PathEscape(*agentID) + "/action_space")
}

func get(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
