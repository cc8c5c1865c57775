package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/taskmesh/internal/model"
)

// ------- builders -------

// taskBody is the create/update JSON sent to the gateway. Unset fields are omitted.
type taskBody struct {
	ID          *u.UUID           `json:"id,omitempty"`
	Title       *string           `json:"title,omitempty"`
	Description *string           `json:"description,omitempty"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
	Status      *model.TaskStatus `json:"status,omitempty"`
	UserID      *u.UUID           `json:"assignedUserId,omitempty"`
	TeamID      *u.UUID           `json:"assignedTeamId,omitempty"`
}

type assignBody struct {
	UserID *u.UUID `json:"userId,omitempty"`
	TeamID *u.UUID `json:"teamId,omitempty"`
}

func pretty(b []byte) string {
	var out any
	if json.Unmarshal(b, &out) == nil {
		j, _ := json.MarshalIndent(out, "", "  ")
		return string(j)
	}
	return string(b)
}

// ------- validators -------

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optUUID(s string) (*u.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := u.FromString(s)
	if err != nil {
		return nil, fmt.Errorf("bad uuid %q", s)
	}
	return &id, nil
}

// parseDue accepts a date (YYYY-MM-DD, end of day UTC) or an RFC 3339 timestamp.
func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		d = d.Add(24*time.Hour - time.Second)
		return &d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("bad due date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func parseStatus(s string) (*model.TaskStatus, error) {
	if s == "" {
		return nil, nil
	}
	st := model.TaskStatus(s)
	if !st.Valid() {
		return nil, fmt.Errorf("bad status %q (todo|in_progress|done)", s)
	}
	return &st, nil
}

// textArg reads "@file" (or "@-" for stdin) and returns other values as is.
func textArg(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	b, err := readAll(strings.TrimPrefix(s, "@"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func exclusive(user, team *u.UUID) error {
	if user != nil && team != nil {
		return errors.New("use either -user or -team")
	}
	return nil
}

func listQuery(status string, page, size int) string {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("pageSize", strconv.Itoa(size))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func must[T any](v T, err error) T {
	if err != nil {
		fail(err)
	}
	return v
}

// ------- commands -------

func runTask(ctx context.Context, api *apiClient, sub string, args []string) {
	switch sub {
	case "create":
		cmdTaskCreate(ctx, api, args)
	case "list":
		cmdTaskList(ctx, api, args)
	case "get":
		id := idFlag("get", args)
		env := must(api.do(ctx, http.MethodGet, "/api/v1/tasks/"+id, nil))
		fmt.Println(pretty(env.Data))
	case "update":
		cmdTaskUpdate(ctx, api, args)
	case "status":
		fs := flag.NewFlagSet("status", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		status := fs.String("status", "", "todo|in_progress|done")
		_ = fs.Parse(args)
		st := must(parseStatus(*status))
		if *id == "" || st == nil {
			fmt.Fprintln(os.Stderr, "need -id and -status")
			os.Exit(1)
		}
		env := must(api.do(ctx, http.MethodPatch, "/api/v1/tasks/"+*id+"/status", map[string]any{"status": st}))
		fmt.Println(pretty(env.Data))
	case "assign":
		fs := flag.NewFlagSet("assign", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		user := fs.String("user", "", "assignee user id")
		team := fs.String("team", "", "assignee team id")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		body := assignBody{UserID: must(optUUID(*user)), TeamID: must(optUUID(*team))}
		if err := exclusive(body.UserID, body.TeamID); err != nil {
			fail(err)
		}
		env := must(api.do(ctx, http.MethodPut, "/api/v1/tasks/"+*id+"/assign", body))
		fmt.Println(pretty(env.Data))
	case "rm":
		id := idFlag("rm", args)
		env := must(api.do(ctx, http.MethodDelete, "/api/v1/tasks/"+id, nil))
		fmt.Println(pretty(env.Data))
	default:
		usage()
	}
}

func idFlag(name string, args []string) string {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.String("id", "", "task id (uuid)")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	return *id
}

func cmdTaskCreate(ctx context.Context, api *apiClient, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	id := fs.String("id", "", "client task id (uuid, optional)")
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description or @file")
	due := fs.String("due", "", "due date")
	status := fs.String("status", "", "initial status")
	user := fs.String("user", "", "assignee user id")
	team := fs.String("team", "", "assignee team id")
	_ = fs.Parse(args)
	if *title == "" || *desc == "" {
		fmt.Fprintln(os.Stderr, "need -title and -desc")
		os.Exit(1)
	}

	body := taskBody{
		ID:          must(optUUID(*id)),
		Title:       title,
		Description: optString(must(textArg(*desc))),
		DueDate:     must(parseDue(*due)),
		Status:      must(parseStatus(*status)),
		UserID:      must(optUUID(*user)),
		TeamID:      must(optUUID(*team)),
	}
	if err := exclusive(body.UserID, body.TeamID); err != nil {
		fail(err)
	}
	env := must(api.do(ctx, http.MethodPost, "/api/v1/tasks", body))
	fmt.Println(pretty(env.Data))
}

func cmdTaskUpdate(ctx context.Context, api *apiClient, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "task id")
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description or @file")
	due := fs.String("due", "", "due date")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}

	body := taskBody{
		Title:       optString(*title),
		Description: optString(must(textArg(*desc))),
		DueDate:     must(parseDue(*due)),
	}
	env := must(api.do(ctx, http.MethodPatch, "/api/v1/tasks/"+*id, body))
	fmt.Println(pretty(env.Data))
}

func cmdTaskList(ctx context.Context, api *apiClient, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "status filter")
	page := fs.Int("page", 0, "page")
	size := fs.Int("size", 0, "page size")
	assigned := fs.Bool("assigned", false, "tasks assigned to me")
	team := fs.String("team", "", "tasks assigned to a team")
	_ = fs.Parse(args)

	path := "/api/v1/tasks"
	switch {
	case *assigned:
		path += "/assigned/me"
	case *team != "":
		path += "/team/" + *team
	}
	env := must(api.do(ctx, http.MethodGet, path+listQuery(*status, *page, *size), nil))

	var tasks []model.Task
	if err := json.Unmarshal(env.Data, &tasks); err != nil {
		fail(err)
	}
	type row struct{ ID, Title, Status, Due string }
	rows := make([]row, 0, len(tasks))
	for _, t := range tasks {
		r := row{ID: t.ID.String(), Title: t.Title, Status: string(t.Status)}
		if t.DueDate != nil {
			r.Due = t.DueDate.UTC().Format("2006-01-02")
		}
		rows = append(rows, r)
	}
	printJSON(map[string]any{"items": rows, "meta": env.Meta})
}
