package translator

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
)

// DeepL translates text and documents through the DeepL REST API.
type DeepL struct {
	BaseURL      string
	APIKey       string
	Client       *http.Client
	PollInterval time.Duration
}

func NewDeepL(baseURL, apiKey string) *DeepL {
	if baseURL == "" {
		baseURL = "https://api-free.deepl.com"
	}
	return &DeepL{
		BaseURL: baseURL,
		APIKey:  apiKey,
		// document translation can be slow; the poll loop below is what
		// waits, individual requests stay bounded
		Client:       &http.Client{Timeout: 90 * time.Second},
		PollInterval: 2 * time.Second,
	}
}

type deeplTextReq struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
}

type deeplTextResp struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
	Message string `json:"message,omitempty"`
}

func (d *DeepL) TranslateText(ctx context.Context, content, sourceLang, targetLang string) (string, error) {
	reqBody := deeplTextReq{
		Text:       []string{content},
		TargetLang: strings.ToUpper(targetLang),
	}
	if sourceLang != "" && sourceLang != "auto" {
		reqBody.SourceLang = strings.ToUpper(sourceLang)
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/v2/translate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.APIKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrTranslation, resp.StatusCode)
	}

	var decoded deeplTextResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	if len(decoded.Translations) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrTranslation)
	}
	return decoded.Translations[0].Text, nil
}

type deeplDocHandle struct {
	DocumentID  string `json:"document_id"`
	DocumentKey string `json:"document_key"`
}

type deeplDocStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// TranslateDocument runs the upload / poll / download sequence for
// structured formats (pdf, docx, ...). Formality is passed through when
// the caller sets one; DeepL rejects it for unsupported language pairs.
func (d *DeepL) TranslateDocument(ctx context.Context, data []byte, filename, sourceLang, targetLang, formality string) ([]byte, error) {
	handle, err := d.uploadDocument(ctx, data, filename, sourceLang, targetLang, formality)
	if err != nil {
		return nil, err
	}

	for {
		status, err := d.documentStatus(ctx, handle)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case "done":
			return d.downloadDocument(ctx, handle)
		case "error":
			msg := status.ErrorMessage
			if msg == "" {
				msg = "document translation failed"
			}
			return nil, fmt.Errorf("%w: %s", ErrTranslation, msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *DeepL) uploadDocument(ctx context.Context, data []byte, filename, sourceLang, targetLang, formality string) (*deeplDocHandle, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("target_lang", strings.ToUpper(targetLang)); err != nil {
		return nil, err
	}
	if sourceLang != "" && sourceLang != "auto" {
		if err := w.WriteField("source_lang", strings.ToUpper(sourceLang)); err != nil {
			return nil, err
		}
	}
	if formality != "" && formality != "default" {
		if err := w.WriteField("formality", formality); err != nil {
			return nil, err
		}
	}

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/v2/document", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.APIKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: upload status %d", ErrTranslation, resp.StatusCode)
	}

	var handle deeplDocHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	if handle.DocumentID == "" || handle.DocumentKey == "" {
		return nil, fmt.Errorf("%w: invalid upload response", ErrTranslation)
	}
	return &handle, nil
}

func (d *DeepL) documentStatus(ctx context.Context, h *deeplDocHandle) (*deeplDocStatus, error) {
	b, err := json.Marshal(map[string]string{"document_key": h.DocumentKey})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/document/%s", d.BaseURL, h.DocumentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.APIKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status check %d", ErrTranslation, resp.StatusCode)
	}

	var status deeplDocStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	return &status, nil
}

func (d *DeepL) downloadDocument(ctx context.Context, h *deeplDocHandle) ([]byte, error) {
	b, err := json.Marshal(map[string]string{"document_key": h.DocumentKey})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/document/%s/result", d.BaseURL, h.DocumentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.APIKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: download status %d", ErrTranslation, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
