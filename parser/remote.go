package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdewitt/citelens/citation"
)

// RemoteConfig configures the hosted bbox parse service.
type RemoteConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// RemoteParser parses paged documents through the hosted parse service,
// which returns structured blocks with page-normalized bounding boxes.
// The flow is upload, submit an async job, poll until completion, then
// download the result if the service handed back a URL instead of inline
// JSON.
type RemoteParser struct {
	cfg    RemoteConfig
	client *http.Client
}

func NewRemoteParser(cfg RemoteConfig) *RemoteParser {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://platform.reducto.ai"
	}
	return &RemoteParser{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *RemoteParser) SupportedFormats() []string {
	return []string{"pdf", "docx", "pptx"}
}

func (p *RemoteParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	if p.cfg.APIKey == "" {
		return nil, fmt.Errorf("parse service API key not configured")
	}

	fileURL, err := p.uploadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("uploading to parse service: %w", err)
	}

	jobID, err := p.submitJob(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("submitting parse job: %w", err)
	}

	raw, err := p.pollResult(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("getting parse result: %w", err)
	}

	result, err := decodeRemoteResult(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding parse result: %w", err)
	}
	return result, nil
}

func (p *RemoteParser) uploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		FileID string `json:"file_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if !strings.HasPrefix(result.FileID, "reducto://") {
		result.FileID = "reducto://" + result.FileID
	}
	return result.FileID, nil
}

func (p *RemoteParser) submitJob(ctx context.Context, fileURL string) (string, error) {
	payload := map[string]any{
		"input": fileURL,
		"formatting": map[string]any{
			"table_output_format": "html",
			"add_page_markers":    true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/parse_async", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("parse job rejected %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.JobID, nil
}

func (p *RemoteParser) pollResult(ctx context.Context, jobID string) ([]byte, error) {
	for i := 0; i < 60; i++ { // max ~5 minutes
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}

		req, err := http.NewRequestWithContext(ctx, "GET", p.cfg.BaseURL+"/job/"+jobID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

		resp, err := p.client.Do(req)
		if err != nil {
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			continue
		}

		var job struct {
			Status string          `json:"status"`
			Reason string          `json:"reason"`
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(body, &job); err != nil {
			return nil, err
		}

		switch job.Status {
		case "Completed":
			return p.resolveResult(ctx, job.Result)
		case "Failed":
			return nil, fmt.Errorf("parse job failed: %s", job.Reason)
		}
	}
	return nil, fmt.Errorf("parse job %s timed out", jobID)
}

// resolveResult follows the URL indirection some results use for large
// documents.
func (p *RemoteParser) resolveResult(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	var wrapper struct {
		Result struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Result.Type == "url" {
		req, err := http.NewRequestWithContext(ctx, "GET", wrapper.Result.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("downloading result: status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return raw, nil
}

// remoteBlock is the service's block shape. The bbox carries its page.
type remoteBlock struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	BBox    *struct {
		Page   int     `json:"page"`
		Left   float64 `json:"left"`
		Top    float64 `json:"top"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"bbox"`
}

// decodeRemoteResult converts the service JSON into blocks. The payload
// nests blocks inside chunks, sometimes under a top-level "result" key.
func decodeRemoteResult(raw []byte) (*ParseResult, error) {
	var outer struct {
		Usage struct {
			NumPages int `json:"num_pages"`
		} `json:"usage"`
		Result json.RawMessage `json:"result"`
		Chunks []struct {
			Blocks []remoteBlock `json:"blocks"`
		} `json:"chunks"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, err
	}

	chunks := outer.Chunks
	if chunks == nil && outer.Result != nil {
		var inner struct {
			Chunks []struct {
				Blocks []remoteBlock `json:"blocks"`
			} `json:"chunks"`
		}
		if err := json.Unmarshal(outer.Result, &inner); err != nil {
			return nil, err
		}
		chunks = inner.Chunks
	}

	var blocks []Block
	var text strings.Builder
	pageCount := outer.Usage.NumPages

	for _, chunk := range chunks {
		for _, rb := range chunk.Blocks {
			if rb.BBox == nil || strings.TrimSpace(rb.Content) == "" {
				continue
			}
			b := Block{
				Content: rb.Content,
				Type:    rb.Type,
				Page:    rb.BBox.Page,
				BBox: &citation.BBox{
					Left:   rb.BBox.Left,
					Top:    rb.BBox.Top,
					Width:  rb.BBox.Width,
					Height: rb.BBox.Height,
				},
			}
			if b.Page > pageCount {
				pageCount = b.Page
			}
			blocks = append(blocks, b)
			text.WriteString(rb.Content)
			text.WriteString("\n\n")
		}
	}

	return &ParseResult{
		Blocks:    blocks,
		Text:      text.String(),
		PageCount: pageCount,
		Method:    "remote",
	}, nil
}
