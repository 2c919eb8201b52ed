package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sahadipankar/PresenSense/pkg/dto"
)

// Client talks to the PresenSense API from the camera agent.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// VerifyFrame posts one frame to the streaming verification endpoint.
func (c *Client) VerifyFrame(ctx context.Context, frame []byte) (*dto.StreamVerifyResponse, error) {
	resp, err := c.postFrame(ctx, "/v1/verify/stream", frame)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify frame: status %d", resp.StatusCode)
	}

	var result dto.StreamVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &result, nil
}

// StartSession opens (or resumes) a monitoring session for the user.
func (c *Client) StartSession(ctx context.Context, userID uuid.UUID) (*dto.SessionResponse, error) {
	body, err := json.Marshal(dto.StartSessionRequest{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("start session: status %d", resp.StatusCode)
	}

	var session dto.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	return &session, nil
}

// RecordFrame posts one monitoring frame to a session. Frames with no
// detectable face are reported by the API as 400; the agent skips them.
func (c *Client) RecordFrame(ctx context.Context, sessionID uuid.UUID, frame []byte) (*dto.FrameResponse, error) {
	resp, err := c.postFrame(ctx, "/v1/sessions/"+sessionID.String()+"/frames", frame)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, nil // no face in frame
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("record frame: status %d", resp.StatusCode)
	}

	var result dto.FrameResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode frame response: %w", err)
	}
	return &result, nil
}

// EndSession closes a monitoring session.
func (c *Client) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/sessions/"+sessionID.String()+"/end", nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("end session: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postFrame(ctx context.Context, path string, frame []byte) (*http.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(frame)); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post frame: %w", err)
	}
	return resp, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}
