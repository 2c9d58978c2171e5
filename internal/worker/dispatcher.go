package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Tunables for the dispatch pipeline. Chunk size trades provider rate
// limits against total latency; in-chunk concurrency is capped globally so
// a large chunk cannot open unbounded connections to the provider.
const (
	DefaultChunkSize          = 50
	DefaultMaxConcurrentSends = 10
	DefaultSendTimeout        = 30 * time.Second
)

// Validation errors surfaced synchronously before any provider call.
var (
	ErrMissingSubject = errors.New("subject is required")
	ErrMissingContent = errors.New("content is required")
)

// NoValidRecipientsError is returned when validation leaves zero sendable
// addresses. It carries the rejected list so callers can report it.
type NoValidRecipientsError struct {
	Invalid []string
}

func (e *NoValidRecipientsError) Error() string {
	return fmt.Sprintf("no valid recipients (%d invalid)", len(e.Invalid))
}

// DeliveryRecorder is the slice of the delivery service the dispatcher
// needs: record creation at dispatch time and outcome reflection after
// each chunk.
type DeliveryRecorder interface {
	CreatePending(ctx context.Context, campaignID, recipient string, isTest bool) (*domain.DeliveryRecord, error)
	ApplySendOutcome(ctx context.Context, id string, out domain.SendOutcome) error
}

// DispatchRequest describes one bulk send.
type DispatchRequest struct {
	Recipients  []string `json:"recipients"`
	Names       []string `json:"names"`
	Subject     string   `json:"subject"`
	HTMLContent string   `json:"content"`
	TextContent string   `json:"text_content,omitempty"`
	FromName    string   `json:"from_name,omitempty"`
	FromEmail   string   `json:"from_email,omitempty"`
	ReplyTo     string   `json:"reply_to,omitempty"`
	CampaignID  string   `json:"campaign_id,omitempty"`
	IsTest      bool     `json:"is_test,omitempty"`
}

// DispatchResult aggregates a completed dispatch. Outcomes has exactly one
// entry per valid (post-validation) recipient; invalid addresses appear
// only in InvalidEmails.
type DispatchResult struct {
	Outcomes      []domain.SendOutcome `json:"results"`
	InvalidEmails []string             `json:"invalid_emails"`
	SuccessCount  int                  `json:"successful_sends"`
	FailureCount  int                  `json:"failed_sends"`
}

// Dispatcher turns a recipient list into chunked provider sends with
// bounded in-chunk concurrency. Chunks run sequentially: chunk N+1 does
// not start until chunk N's sends, record updates, and progress update
// have completed. One chunk's total failure never cancels the rest.
type Dispatcher struct {
	sender      ESPSender
	records     DeliveryRecorder
	chunkSize   int
	maxWorkers  int
	sendTimeout time.Duration
	trackingURL string
	fromName    string
	fromEmail   string
}

// NewDispatcher creates a dispatcher bound to the process's selected
// backend. records may not be nil; sender may be nil when no provider is
// configured, in which case every dispatch fails fast.
func NewDispatcher(sender ESPSender, records DeliveryRecorder) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		records:     records,
		chunkSize:   DefaultChunkSize,
		maxWorkers:  DefaultMaxConcurrentSends,
		sendTimeout: DefaultSendTimeout,
	}
}

// SetChunkSize overrides the recipient partition size.
func (d *Dispatcher) SetChunkSize(n int) {
	if n > 0 {
		d.chunkSize = n
	}
}

// SetMaxConcurrentSends overrides the in-chunk worker ceiling.
func (d *Dispatcher) SetMaxConcurrentSends(n int) {
	if n > 0 {
		d.maxWorkers = n
	}
}

// SetSendTimeout overrides the per-send timeout.
func (d *Dispatcher) SetSendTimeout(t time.Duration) {
	if t > 0 {
		d.sendTimeout = t
	}
}

// SetTrackingURL enables open-pixel and click-redirect injection rooted at
// the given base URL.
func (d *Dispatcher) SetTrackingURL(base string) {
	d.trackingURL = strings.TrimRight(base, "/")
}

// SetDefaultFrom sets the sender identity used when a request omits one.
func (d *Dispatcher) SetDefaultFrom(name, email string) {
	d.fromName = name
	d.fromEmail = email
}

// Dispatch is the handle for one in-flight dispatch invocation. The caller
// polls Progress while the pipeline runs and collects the final result
// from Wait.
type Dispatch struct {
	ID string

	progress *Progress
	done     chan struct{}
	result   *DispatchResult
}

// Progress returns a snapshot of the dispatch counters.
func (h *Dispatch) Progress() domain.BatchProgress { return h.progress.Snapshot() }

// Done is closed when the final chunk has been processed.
func (h *Dispatch) Done() <-chan struct{} { return h.done }

// Wait blocks until the dispatch completes or ctx is cancelled.
func (h *Dispatch) Wait(ctx context.Context) (*DispatchResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.result, nil
	}
}

// recipient pairs an address with its aligned display name.
type recipient struct {
	addr string
	name string
}

// Dispatch runs the full pipeline synchronously and returns the aggregated
// outcomes once every chunk has completed. Cancelling ctx abandons the
// wait, not the pipeline: chunks already started still run to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	h, err := d.Begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// Begin validates the request, creates the progress handle, and starts the
// chunk pipeline in the background. Validation and configuration errors
// are returned synchronously; from that point the dispatch runs all chunks
// to completion regardless of per-recipient failures. The pipeline runs on
// a context detached from ctx's cancellation: a caller giving up (an HTTP
// client disconnecting mid-run) stops its Wait, never the sends.
func (d *Dispatcher) Begin(ctx context.Context, req DispatchRequest) (*Dispatch, error) {
	if d.sender == nil {
		return nil, ErrNoSenderConfigured
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, ErrMissingSubject
	}
	if strings.TrimSpace(req.HTMLContent) == "" {
		return nil, ErrMissingContent
	}

	valid, invalid := partitionRecipients(req.Recipients, req.Names)
	if len(valid) == 0 {
		return nil, &NoValidRecipientsError{Invalid: invalid}
	}

	chunks := chunkRecipients(valid, d.chunkSize)
	h := &Dispatch{
		ID:       uuid.New().String(),
		progress: newProgress(len(valid), len(chunks)),
		done:     make(chan struct{}),
	}

	go d.run(context.WithoutCancel(ctx), h, req, chunks, invalid)
	return h, nil
}

func (d *Dispatcher) run(ctx context.Context, h *Dispatch, req DispatchRequest, chunks [][]recipient, invalid []string) {
	defer close(h.done)

	result := &DispatchResult{InvalidEmails: invalid}
	if result.InvalidEmails == nil {
		result.InvalidEmails = []string{}
	}

	logger.Info("dispatch started",
		"dispatch_id", h.ID,
		"recipients", h.progress.Snapshot().TotalEmails,
		"chunks", len(chunks),
		"invalid_dropped", len(invalid))

	for i, chunk := range chunks {
		records := d.createRecords(ctx, req, chunk)
		outcomes := d.sendChunk(ctx, req, chunk, records)

		succeeded, failed := 0, 0
		for j, out := range outcomes {
			if out.Success {
				succeeded++
			} else {
				failed++
			}
			// Best-effort status recording: a datastore failure must not
			// un-send an email the provider already accepted.
			if err := d.records.ApplySendOutcome(ctx, records[j], out); err != nil {
				log.Printf("[Dispatcher] %s: record update failed for %s: %v",
					h.ID, logger.RedactEmail(out.Recipient), err)
			}
		}

		h.progress.advance(len(chunk), succeeded, failed)
		result.Outcomes = append(result.Outcomes, outcomes...)
		result.SuccessCount += succeeded
		result.FailureCount += failed

		logger.Info("chunk complete",
			"dispatch_id", h.ID,
			"chunk", i+1,
			"chunks", len(chunks),
			"succeeded", succeeded,
			"failed", failed)
	}

	h.progress.complete()
	h.result = result

	logger.Info("dispatch complete",
		"dispatch_id", h.ID,
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount)
}

// createRecords persists one not_sent DeliveryRecord per chunk recipient.
// Persistence failures degrade to a synthetic record ID so the send still
// goes out; only the status trail is lost.
func (d *Dispatcher) createRecords(ctx context.Context, req DispatchRequest, chunk []recipient) []string {
	ids := make([]string, len(chunk))
	for i, r := range chunk {
		rec, err := d.records.CreatePending(ctx, req.CampaignID, r.addr, req.IsTest)
		if err != nil {
			log.Printf("[Dispatcher] create record failed for %s: %v", logger.RedactEmail(r.addr), err)
			ids[i] = uuid.New().String()
			continue
		}
		ids[i] = rec.ID
	}
	return ids
}

// sendChunk issues one chunk's sends with bounded concurrency and a
// per-send timeout. Outcome order matches the chunk order.
func (d *Dispatcher) sendChunk(ctx context.Context, req DispatchRequest, chunk []recipient, records []string) []domain.SendOutcome {
	outcomes := make([]domain.SendOutcome, len(chunk))

	workers := d.maxWorkers
	if len(chunk) < workers {
		workers = len(chunk)
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i := range chunk {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = d.sendOne(ctx, req, chunk[i], records[i])
		}(i)
	}
	wg.Wait()

	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, req DispatchRequest, r recipient, recordID string) domain.SendOutcome {
	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	msg := d.buildMessage(req, r, recordID)

	out, err := d.sender.Send(sctx, msg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || sctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timeout after %s: %w", d.sendTimeout, err)
		}
		return *failedOutcome(r.addr, err)
	}
	if !out.Success && sctx.Err() == context.DeadlineExceeded {
		out.Error = fmt.Sprintf("timeout after %s: %s", d.sendTimeout, out.Error)
	}
	return *out
}

func (d *Dispatcher) buildMessage(req DispatchRequest, r recipient, recordID string) *domain.EmailMessage {
	fromName, fromEmail := req.FromName, req.FromEmail
	if fromEmail == "" {
		fromName, fromEmail = d.fromName, d.fromEmail
	}

	html := personalize(req.HTMLContent, r.name)
	if d.trackingURL != "" {
		html = d.injectTracking(html, recordID)
	}

	return &domain.EmailMessage{
		RecordID:    recordID,
		CampaignID:  req.CampaignID,
		Recipient:   r.addr,
		ToName:      r.name,
		FromName:    fromName,
		FromEmail:   fromEmail,
		ReplyTo:     req.ReplyTo,
		Subject:     personalize(req.Subject, r.name),
		HTMLContent: html,
		TextContent: personalize(req.TextContent, r.name),
	}
}

// partitionRecipients validates every address and keeps name alignment by
// original index. Addresses are trimmed before validation; duplicates are
// passed through untouched (de-duplication is a list-management concern,
// not a dispatch concern).
func partitionRecipients(addrs, names []string) ([]recipient, []string) {
	var valid []recipient
	invalid := []string{}
	for i, raw := range addrs {
		addr := strings.TrimSpace(raw)
		if !domain.ValidEmail(addr) {
			invalid = append(invalid, raw)
			continue
		}
		name := ""
		if i < len(names) {
			name = names[i]
		}
		valid = append(valid, recipient{addr: addr, name: name})
	}
	return valid, invalid
}

// chunkRecipients splits the valid list into fixed-size chunks; the final
// chunk holds the remainder.
func chunkRecipients(valid []recipient, size int) [][]recipient {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]recipient
	for i := 0; i < len(valid); i += size {
		end := i + size
		if end > len(valid) {
			end = len(valid)
		}
		chunks = append(chunks, valid[i:end])
	}
	return chunks
}

// personalize substitutes the {{name}} merge tag at send time.
func personalize(content, name string) string {
	if content == "" {
		return content
	}
	return strings.ReplaceAll(content, "{{name}}", name)
}

var linkRe = regexp.MustCompile(`href=["'](https?://[^"']+)["']`)

// injectTracking appends the open pixel and rewrites links through the
// click redirect, keyed by the delivery record ID.
func (d *Dispatcher) injectTracking(html, recordID string) string {
	pixel := fmt.Sprintf(`<img src="%s/track/open/%s" width="1" height="1" alt="" style="display:none;width:1px;height:1px" />`,
		d.trackingURL, recordID)
	if idx := strings.LastIndex(strings.ToLower(html), "</body>"); idx >= 0 {
		html = html[:idx] + pixel + html[idx:]
	} else {
		html += pixel
	}

	html = linkRe.ReplaceAllStringFunc(html, func(match string) string {
		parts := linkRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		origURL := parts[1]
		if strings.Contains(origURL, "/track/") {
			return match
		}
		return fmt.Sprintf(`href="%s/track/click/%s?url=%s"`,
			d.trackingURL, recordID, url.QueryEscape(origURL))
	})

	return html
}
