package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
	"github.com/hadlocna/operations/internal/domain/workflow"
	"github.com/hadlocna/operations/internal/invoice"
	"github.com/hadlocna/operations/internal/progress"
)

// Analyzer classifies and extracts one document
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, filename string) (*invoice.Analysis, error)
}

// Router assigns an archival destination from extracted party names
type Router interface {
	Route(customerName, supplierName string) entity.RoutingResult
}

// Archiver files a document under its routed folder chain
type Archiver interface {
	Validate() error
	Archive(ctx context.Context, cred *entity.Credential, content []byte, filename string, routing entity.RoutingResult, issueDate *time.Time) (*entity.ArchivalLocation, error)
}

// Ledger records accepted invoices and answers duplicate checks
type Ledger interface {
	Validate() error
	Append(ctx context.Context, cred *entity.Credential, inv entity.ExtractedInvoice, archiveLink, sender string) entity.AppendResult
	Exists(ctx context.Context, cred *entity.Credential, invoiceNumber string) bool
}

// Config holds orchestrator settings
type Config struct {
	Lookback    time.Duration
	MaxResults  int64
	BatchSize   int
	CallTimeout time.Duration
	Serial      bool
}

// Orchestrator drives discovery and the per-candidate pipeline
type Orchestrator struct {
	auth     port.AuthProvider
	source   port.MessageSource
	analyzer Analyzer
	router   Router
	archiver Archiver
	ledger   Ledger
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrchestrator creates a new intake orchestrator
func NewOrchestrator(
	auth port.AuthProvider,
	source port.MessageSource,
	analyzer Analyzer,
	router Router,
	archiver Archiver,
	ledger Ledger,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 90 * time.Second
	}
	return &Orchestrator{
		auth:     auth,
		source:   source,
		analyzer: analyzer,
		router:   router,
		archiver: archiver,
		ledger:   ledger,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one scan invocation. Configuration and authentication failures
// abort the run and are returned as errors; every other failure is recorded
// against its candidate. Cancelling ctx stops scheduling new candidates but
// lets in-flight ones finish.
func (o *Orchestrator) Run(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
	if sink == nil {
		sink = progress.Discard
	}

	summary := entity.NewProcessingSummary(runID)
	summary.StartedAt = o.now()

	if err := o.preflight(); err != nil {
		return nil, err
	}

	sink.Log("Authenticating")
	cred, err := o.credential(ctx)
	if err != nil {
		return nil, err
	}

	summary.Query = BuildQuery(req.DateFrom, req.DateTo, summary.StartedAt, o.config.Lookback)
	sink.Log(fmt.Sprintf("Searching mailbox: %s", summary.Query))

	refs, err := o.search(ctx, cred, summary.Query)
	if err != nil {
		return nil, err
	}

	total := len(refs)
	sink.Log(fmt.Sprintf("Found %d candidate message(s)", total))
	o.logger.Info("Discovery completed",
		zap.String("run_id", runID),
		zap.String("query", summary.Query),
		zap.Int("candidates", total))

	claims := newInvoiceClaims()
	var results []entity.PipelineResult
	if o.config.Serial || req.Serial || o.config.BatchSize <= 1 {
		results = o.runSerial(ctx, cred, refs, claims, sink)
	} else {
		results = o.runBatched(ctx, cred, refs, claims, sink)
	}

	for _, r := range results {
		summary.Add(r)
	}

	if len(results) < total {
		summary.Cancelled = true
		o.logger.Warn("Scan cancelled before all candidates were scheduled",
			zap.String("run_id", runID),
			zap.Int("scheduled", len(results)),
			zap.Int("candidates", total))
		sink.Log(fmt.Sprintf("Cancelled: %d candidate(s) not processed", total-len(results)))
	}

	summary.FinishedAt = o.now()
	sink.Log(fmt.Sprintf("Done: %d processed, %d skipped, %d errors",
		len(summary.Processed), len(summary.Skipped), len(summary.Errors)))

	return summary, nil
}

// Preview lists the messages a scan with req would consider without processing them
func (o *Orchestrator) Preview(ctx context.Context, req entity.ScanRequest) (string, []entity.MessageSummary, error) {
	cred, err := o.credential(ctx)
	if err != nil {
		return "", nil, err
	}

	query := BuildQuery(req.DateFrom, req.DateTo, o.now(), o.config.Lookback)
	refs, err := o.search(ctx, cred, query)
	if err != nil {
		return query, nil, err
	}

	summaries := make([]entity.MessageSummary, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			return query, summaries, ctx.Err()
		}
		s, err := o.source.FetchSummary(ctx, cred, ref.ID)
		if err != nil {
			o.logger.Warn("Failed to fetch message summary",
				zap.String("message_id", ref.ID),
				zap.Error(err))
			continue
		}
		summaries = append(summaries, *s)
	}
	return query, summaries, nil
}

func (o *Orchestrator) preflight() error {
	if err := o.archiver.Validate(); err != nil {
		return err
	}
	if err := o.ledger.Validate(); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) credential(ctx context.Context) (*entity.Credential, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	cred, err := o.auth.GetValidCredential(callCtx)
	if err != nil {
		if entity.IsFatal(err) {
			return nil, err
		}
		// any other credential failure still ends the invocation
		return nil, fmt.Errorf("%w: %v", entity.ErrAuth, err)
	}
	return cred, nil
}

func (o *Orchestrator) search(ctx context.Context, cred *entity.Credential, query string) ([]entity.MessageRef, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	refs, err := o.source.Search(callCtx, cred, query, o.config.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return refs, nil
}

// callContext detaches a remote call from client cancellation so that a
// disconnect never interrupts an upload or append halfway through
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.config.CallTimeout)
}

func (o *Orchestrator) runSerial(ctx context.Context, cred *entity.Credential, refs []entity.MessageRef, claims *invoiceClaims, sink progress.Sink) []entity.PipelineResult {
	results := make([]entity.PipelineResult, 0, len(refs))
	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		log := newCandidateLog(sink, i+1, len(refs), false)
		results = append(results, o.processCandidate(ctx, cred, ref, claims, log))
	}
	return results
}

// runBatched processes candidates in fixed-size batches. Results keep
// discovery order and each candidate's progress lines are flushed together.
func (o *Orchestrator) runBatched(ctx context.Context, cred *entity.Credential, refs []entity.MessageRef, claims *invoiceClaims, sink progress.Sink) []entity.PipelineResult {
	var (
		results []entity.PipelineResult
		flushMu sync.Mutex
	)

	for start := 0; start < len(refs); start += o.config.BatchSize {
		if ctx.Err() != nil {
			break
		}

		end := min(start+o.config.BatchSize, len(refs))
		batch := make([]entity.PipelineResult, end-start)

		var g errgroup.Group
		for i := start; i < end; i++ {
			ref := refs[i]
			slot := i - start
			log := newCandidateLog(sink, i+1, len(refs), true)
			g.Go(func() error {
				batch[slot] = o.processCandidate(ctx, cred, ref, claims, log)
				log.flush(&flushMu)
				return nil
			})
		}
		_ = g.Wait()

		results = append(results, batch...)
	}
	return results
}

// processCandidate runs one candidate through the pipeline. It never returns
// an error; every failure is folded into the result. The result status is
// read from the candidate machine's terminal state.
func (o *Orchestrator) processCandidate(ctx context.Context, cred *entity.Credential, ref entity.MessageRef, claims *invoiceClaims, log *candidateLog) (result entity.PipelineResult) {
	machine := workflow.NewCandidateMachine()
	logger := o.logger.With(zap.String("message_id", ref.ID))
	result.MessageID = ref.ID

	advance := func(t workflow.Trigger) {
		if err := machine.Fire(t); err != nil {
			logger.Error("Invalid candidate transition",
				zap.String("state", machine.State().String()),
				zap.String("trigger", t.String()),
				zap.Error(err))
		}
	}
	skip := func(t workflow.Trigger, reason string) entity.PipelineResult {
		advance(t)
		result.Status = statusFor(machine.State())
		result.Reason = reason
		log.Log("skipped: " + reason)
		logger.Info("Candidate skipped",
			zap.String("filename", result.Filename),
			zap.String("reason", reason))
		return result
	}
	fail := func(stage string, err error) entity.PipelineResult {
		advance(workflow.TriggerFail)
		result.Status = statusFor(machine.State())
		result.Error = fmt.Sprintf("%s: %v", stage, err)
		log.Log("error: " + result.Error)
		logger.Error("Candidate failed",
			zap.String("filename", result.Filename),
			zap.String("stage", stage),
			zap.Error(err))
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result = fail("panic", fmt.Errorf("%v", r))
		}
	}()

	// DISCOVERED -> ATTACHMENT_EXTRACTED
	payload, err := o.fetchFull(ctx, cred, ref.ID)
	if err != nil {
		return fail("fetch message", err)
	}

	part, ok := FindPDFPart(&payload.Root)
	if !ok {
		return skip(workflow.TriggerNoAttachment, entity.ReasonNoAttachment)
	}

	candidate := entity.Candidate{
		MessageID:    ref.ID,
		AttachmentID: part.AttachmentID,
		Filename:     part.Filename,
		Sender:       payload.From,
		Subject:      payload.Subject,
	}
	result.Filename = candidate.Filename
	log.SetSubject(candidate.Filename)

	candidate.Data, err = o.attachmentData(ctx, cred, ref.ID, part)
	if err != nil {
		return fail("fetch attachment", err)
	}
	advance(workflow.TriggerExtract)
	log.Log(fmt.Sprintf("downloaded %d bytes", len(candidate.Data)))

	// ATTACHMENT_EXTRACTED -> ACCEPTED | REJECTED
	log.Log("analyzing")
	analysis, err := o.analyze(ctx, candidate)
	if err != nil {
		return fail("analyze", err)
	}
	if !analysis.Accepted {
		return skip(workflow.TriggerReject, analysis.Reason)
	}
	advance(workflow.TriggerAccept)

	routing := o.router.Route(analysis.Fields.CustomerName, analysis.Fields.SupplierName)
	inv := entity.NewExtractedInvoice(analysis.Fields, analysis.Confidence, routing)

	result.InvoiceNumber = inv.InvoiceNumber
	result.Supplier = inv.SupplierName
	result.Category = routing.Category
	result.Entity = routing.EntityFolderName
	result.Confidence = inv.Confidence
	log.Log(fmt.Sprintf("accepted invoice %q from %q (confidence %d%%), routed to %s/%s",
		inv.InvoiceNumber, inv.SupplierName, inv.Confidence, routing.Category, routing.EntityFolderName))

	// ACCEPTED -> NEW | DUPLICATE
	release := claims.acquire(inv.InvoiceNumber)
	defer release()
	if claims.seen(inv.InvoiceNumber) || o.exists(ctx, cred, inv.InvoiceNumber) {
		return skip(workflow.TriggerDuplicate, entity.ReasonDuplicate)
	}
	advance(workflow.TriggerUnique)

	// NEW -> ARCHIVED
	location, err := o.archive(ctx, cred, candidate, inv)
	if err != nil {
		return fail("archive", err)
	}
	claims.markArchived(inv.InvoiceNumber)
	advance(workflow.TriggerArchive)
	result.ArchivePath = location.FullPath()
	result.WebViewLink = location.WebViewLink
	log.Log("archived to " + result.ArchivePath)

	// ARCHIVED -> LEDGERED -> DONE
	appended := o.append(ctx, cred, inv, location.WebViewLink, candidate.Sender)
	if !appended.OK() {
		result.LedgerError = appended.Error
		log.Log("warning: ledger append failed: " + appended.Error)
	} else {
		log.Log("ledger row appended")
	}
	advance(workflow.TriggerLedger)
	advance(workflow.TriggerFinish)

	result.Status = statusFor(machine.State())
	if result.Status != entity.StatusSuccess {
		result.Error = "candidate stopped in state " + machine.State().String()
		return result
	}
	logger.Info("Candidate processed",
		zap.String("filename", result.Filename),
		zap.String("invoice_number", result.InvoiceNumber),
		zap.String("archive_path", result.ArchivePath),
		zap.Bool("ledger_degraded", result.LedgerError != ""))
	return result
}

// statusFor maps a candidate's final state to its summary bucket. A machine
// that never reached a terminal state counts as an error.
func statusFor(state workflow.State) string {
	switch state {
	case workflow.StateDone:
		return entity.StatusSuccess
	case workflow.StateSkipped, workflow.StateRejected, workflow.StateDuplicate:
		return entity.StatusSkipped
	default:
		return entity.StatusError
	}
}

func (o *Orchestrator) fetchFull(ctx context.Context, cred *entity.Credential, messageID string) (*entity.MessagePayload, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.source.FetchFull(callCtx, cred, messageID)
}

// attachmentData prefers an inline body and falls back to an attachment fetch
func (o *Orchestrator) attachmentData(ctx context.Context, cred *entity.Credential, messageID string, part *entity.MessagePart) ([]byte, error) {
	if len(part.Data) > 0 {
		return part.Data, nil
	}
	if part.AttachmentID == "" {
		return nil, entity.ErrNoAttachment
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.source.FetchAttachment(callCtx, cred, messageID, part.AttachmentID)
}

func (o *Orchestrator) analyze(ctx context.Context, c entity.Candidate) (*invoice.Analysis, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.analyzer.Analyze(callCtx, c.Data, c.Filename)
}

func (o *Orchestrator) exists(ctx context.Context, cred *entity.Credential, invoiceNumber string) bool {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.ledger.Exists(callCtx, cred, invoiceNumber)
}

func (o *Orchestrator) archive(ctx context.Context, cred *entity.Credential, c entity.Candidate, inv entity.ExtractedInvoice) (*entity.ArchivalLocation, error) {
	var issueDate *time.Time
	if t, ok := inv.IssueTime(); ok {
		issueDate = &t
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.archiver.Archive(callCtx, cred, c.Data, c.Filename, inv.Routing, issueDate)
}

func (o *Orchestrator) append(ctx context.Context, cred *entity.Credential, inv entity.ExtractedInvoice, link, sender string) entity.AppendResult {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.ledger.Append(callCtx, cred, inv, link, sender)
}
