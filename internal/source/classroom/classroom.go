package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pif-course/collector/api"
	"github.com/pif-course/collector/internal/source"
)

// Default due clock applied when the source reports a due date without a
// time of day. The course timezone's end of day expressed in GMT.
const (
	defaultDueHour   = 2
	defaultDueMinute = 59
	defaultDueSecond = 59
)

// Client implements source.Source over a Classroom-style REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given API base URL. The token is sent as a
// bearer token on every request.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type submissionsResponse struct {
	StudentSubmissions []wireSubmission `json:"studentSubmissions"`
}

type wireSubmission struct {
	ID                   string `json:"id"`
	UserID               string `json:"userId"`
	State                string `json:"state"`
	AssignmentSubmission struct {
		Attachments []struct {
			DriveFile struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"driveFile"`
		} `json:"attachments"`
	} `json:"assignmentSubmission"`
	SubmissionHistory []struct {
		StateHistory struct {
			State          string    `json:"state"`
			ActorUserID    string    `json:"actorUserId"`
			StateTimestamp time.Time `json:"stateTimestamp"`
		} `json:"stateHistory"`
	} `json:"submissionHistory"`
}

// ListSubmissions implements source.Source.
func (c *Client) ListSubmissions(ctx context.Context, courseID, courseworkID string) ([]api.Submission, error) {
	var resp submissionsResponse
	path := fmt.Sprintf("courses/%s/courseWork/%s/studentSubmissions",
		url.PathEscape(courseID), url.PathEscape(courseworkID))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	subs := make([]api.Submission, 0, len(resp.StudentSubmissions))
	for _, ws := range resp.StudentSubmissions {
		sub := api.Submission{
			ID:        ws.ID,
			StudentID: ws.UserID,
			State:     ws.State,
		}
		for _, a := range ws.AssignmentSubmission.Attachments {
			sub.Attachments = append(sub.Attachments, api.Attachment{
				ID:    a.DriveFile.ID,
				Title: a.DriveFile.Title,
			})
		}
		for _, h := range ws.SubmissionHistory {
			sub.History = append(sub.History, api.StateChange{
				State:   h.StateHistory.State,
				ActorID: h.StateHistory.ActorUserID,
				At:      h.StateHistory.StateTimestamp,
			})
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

type wireStudent struct {
	Profile struct {
		EmailAddress string `json:"emailAddress"`
		Name         struct {
			FullName string `json:"fullName"`
		} `json:"name"`
	} `json:"profile"`
}

// StudentProfile implements source.Source.
func (c *Client) StudentProfile(ctx context.Context, courseID, studentID string) (api.Student, error) {
	var ws wireStudent
	path := fmt.Sprintf("courses/%s/students/%s", url.PathEscape(courseID), url.PathEscape(studentID))
	if err := c.getJSON(ctx, path, &ws); err != nil {
		return api.Student{}, err
	}
	return api.Student{
		ID:    studentID,
		Name:  ws.Profile.Name.FullName,
		Email: ws.Profile.EmailAddress,
	}, nil
}

type wireCoursework struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	DueDate *struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"day"`
	} `json:"dueDate"`
	DueTime *struct {
		Hours   int `json:"hours"`
		Minutes int `json:"minutes"`
		Seconds int `json:"seconds"`
	} `json:"dueTime"`
}

// Coursework implements source.Source.
func (c *Client) Coursework(ctx context.Context, courseID, courseworkID string) (api.Coursework, error) {
	var wc wireCoursework
	path := fmt.Sprintf("courses/%s/courseWork/%s", url.PathEscape(courseID), url.PathEscape(courseworkID))
	if err := c.getJSON(ctx, path, &wc); err != nil {
		return api.Coursework{}, err
	}

	cw := api.Coursework{ID: wc.ID, Title: wc.Title}
	if wc.DueDate != nil {
		h, m, s := defaultDueHour, defaultDueMinute, defaultDueSecond
		if wc.DueTime != nil {
			h, m, s = wc.DueTime.Hours, wc.DueTime.Minutes, wc.DueTime.Seconds
		}
		due := time.Date(wc.DueDate.Year, time.Month(wc.DueDate.Month), wc.DueDate.Day, h, m, s, 0, time.UTC)
		cw.Due = &due
	}
	return cw, nil
}

// DownloadAttachment implements source.Source. The content is written to a
// temporary file first and moved into place only on success, so a failed
// transfer never leaves a partial file at dst.
func (c *Client) DownloadAttachment(ctx context.Context, attachmentID, dst string) error {
	req, err := c.newRequest(ctx, fmt.Sprintf("files/%s/media", url.PathEscape(attachmentID)))
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &source.SourceError{Kind: source.KindUnavailable, Op: "download " + attachmentID, Err: err}
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, "download "+attachmentID); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &source.SourceError{Kind: source.KindUnavailable, Op: "download " + attachmentID, Err: err}
	}
	if n == 0 {
		return &source.SourceError{
			Kind: source.KindUnavailable,
			Op:   "download " + attachmentID,
			Err:  fmt.Errorf("transfer made no progress"),
		}
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, path)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &source.SourceError{Kind: source.KindUnavailable, Op: "get " + path, Err: err}
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, "get "+path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &source.SourceError{Kind: source.KindUnavailable, Op: "get " + path, Err: err}
	}
	return nil
}

func (c *Client) checkStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &source.SourceError{Kind: source.KindNotFound, Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if strings.Contains(string(body), "cannotDownloadAbusiveFile") {
			return &source.SourceError{Kind: source.KindUnsafeFile, Op: op, Err: fmt.Errorf("file flagged as unsafe")}
		}
		return &source.SourceError{Kind: source.KindUnavailable, Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return &source.SourceError{Kind: source.KindUnavailable, Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}
