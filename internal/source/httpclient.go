package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/models"
)

const (
	// SessionPageSize is the largest page the sessions endpoint serves.
	SessionPageSize = 500

	defaultHTTPTimeout = 30 * time.Second
	sourceName         = "http"
	dateLayout         = "2006-01-02"
)

// HTTPClient implements DataSource by calling the coaching REST service.
// Plans and payments come nested in the student resource.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. A zero
// timeout means 30 seconds.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		pageSize:   SessionPageSize,
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		return analytics.Unavailable(sourceName, fmt.Errorf("%s: %w", path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return analytics.Unavailable(sourceName, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return analytics.Unavailable(sourceName, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return analytics.Unavailable(sourceName, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (c *HTTPClient) ListStudents(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := c.get(ctx, "/alunos/", nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (c *HTTPClient) GetStudent(ctx context.Context, studentID int64) (*models.Student, error) {
	var st models.Student
	if err := c.get(ctx, "/alunos/"+strconv.FormatInt(studentID, 10), nil, &st); err != nil {
		return nil, err
	}
	for i := range st.Plans {
		if st.Plans[i].StudentID == 0 {
			st.Plans[i].StudentID = st.ID
		}
	}
	for i := range st.Payments {
		if st.Payments[i].StudentID == 0 {
			st.Payments[i].StudentID = st.ID
		}
	}
	return &st, nil
}

func (c *HTTPClient) ListPlans(ctx context.Context, studentID int64) ([]models.WorkoutPlan, error) {
	st, err := c.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return st.Plans, nil
}

func (c *HTTPClient) ListPayments(ctx context.Context, studentID int64) ([]models.Payment, error) {
	st, err := c.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return st.Payments, nil
}

// ListSessions pages through /sessoes/ until a short page. The service
// filters by calendar date, so the result is trimmed to [from, to) here.
func (c *HTTPClient) ListSessions(ctx context.Context, studentID int64, from, to time.Time) ([]models.Session, error) {
	params := url.Values{}
	params.Set("aluno_id", strconv.FormatInt(studentID, 10))
	if !from.IsZero() {
		params.Set("de", from.Format(dateLayout))
	}
	if !to.IsZero() {
		params.Set("ate", to.Format(dateLayout))
	}
	params.Set("limit", strconv.Itoa(c.pageSize))

	var out []models.Session
	for offset := 0; ; offset += c.pageSize {
		params.Set("offset", strconv.Itoa(offset))
		var page []models.Session
		if err := c.get(ctx, "/sessoes/", params, &page); err != nil {
			return nil, err
		}
		for _, s := range page {
			if InRange(s.Time.Time, from, to) {
				out = append(out, s)
			}
		}
		if len(page) < c.pageSize {
			break
		}
	}
	return out, nil
}
