package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/version"
)

const (
	recordingSuffix  = ".mp3"
	recordingTimeout = 30 * time.Second
)

// RecordingFetcher downloads call recordings with the account credentials.
type RecordingFetcher struct {
	accountSID string
	authToken  string
	http       *http.Client
}

// NewRecordingFetcher creates a fetcher. A nil client uses one with a
// bounded timeout.
func NewRecordingFetcher(accountSID, authToken string, client *http.Client) *RecordingFetcher {
	if client == nil {
		client = &http.Client{Timeout: recordingTimeout}
	}
	return &RecordingFetcher{accountSID: accountSID, authToken: authToken, http: client}
}

// FetchRecording downloads the recording at url as mp3. The caller closes
// the returned body.
func (f *RecordingFetcher) FetchRecording(ctx context.Context, url string) (io.ReadCloser, string, error) {
	if url == "" {
		return nil, "", &domain.TelephonyError{Op: "recording", Err: fmt.Errorf("recording url is empty")}
	}
	if !strings.HasSuffix(url, recordingSuffix) {
		url += recordingSuffix
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &domain.TelephonyError{Op: "recording", Err: err}
	}
	if f.accountSID != "" {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, "", &domain.TelephonyError{Op: "recording", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", &domain.TelephonyError{Op: "recording", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return resp.Body, "recording" + recordingSuffix, nil
}
