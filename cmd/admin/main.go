// Operator CLI for the questline server's admin HTTP surface.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

commands:
  report    -player P [-url U]              quest report for a player
  reset     -player P [-url U]              clear a player's progress
  complete  -player P -quest Q [-url U]     force-complete through the redeem path
  reject    -player P -quest Q [-url U]     reject a quest
  state     -player P [-body JSON] [-url U] get or mutate sim player state
  audit     [-player P] [-limit N] [-url U] recent status transitions
  reload    [-url U]                        reload the quest catalog`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "report":
		playerCmd(os.Args[2:], http.MethodGet, "", "")
	case "reset":
		playerCmd(os.Args[2:], http.MethodPost, "/reset", "")
	case "complete":
		questCmd(os.Args[2:], "complete")
	case "reject":
		questCmd(os.Args[2:], "reject")
	case "state":
		stateCmd(os.Args[2:])
	case "audit":
		auditCmd(os.Args[2:])
	case "reload":
		reloadCmd(os.Args[2:])
	default:
		usage()
	}
}

func playerCmd(args []string, method, suffix, body string) {
	fs := flag.NewFlagSet("player", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player id")
	_ = fs.Parse(args)
	if *player == "" {
		usage()
	}
	do(method, join(*baseURL, "/admin/v1/players/"+*player+suffix), body)
}

func questCmd(args []string, action string) {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player id")
	questID := fs.String("quest", "", "quest id")
	_ = fs.Parse(args)
	if *player == "" || *questID == "" {
		usage()
	}
	do(http.MethodPost, join(*baseURL, "/admin/v1/players/"+*player+"/quests/"+*questID+"/"+action), "")
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player id")
	body := fs.String("body", "", `mutation JSON, e.g. {"add_items":{"ore":3}} (empty = read)`)
	_ = fs.Parse(args)
	if *player == "" {
		usage()
	}
	method := http.MethodGet
	if *body != "" {
		method = http.MethodPost
	}
	do(method, join(*baseURL, "/admin/v1/players/"+*player+"/state"), *body)
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "filter by player id")
	limit := fs.Int("limit", 50, "max rows")
	_ = fs.Parse(args)
	u := join(*baseURL, fmt.Sprintf("/admin/v1/audit?limit=%d", *limit))
	if *player != "" {
		u += "&player=" + *player
	}
	do(http.MethodGet, u, "")
}

func reloadCmd(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	do(http.MethodPost, join(*baseURL, "/admin/v1/catalog/reload"), "")
}

func join(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func do(method, url, body string) {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
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
