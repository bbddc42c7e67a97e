package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// Orchestrator drives a media request through enumerate → resolve →
// fetch → verify. Every failing path cleans up its temporary files before
// returning; on success the file at DownloadOutcome.LocalPath belongs to
// the caller.
type Orchestrator struct {
	primary        Backend
	fallback       Backend
	policy         SizePolicy
	tempDir        string
	attemptTimeout time.Duration
	enableFallback bool
	sem            *semaphore.Weighted
	logger         *slog.Logger
}

type Options struct {
	Primary        Backend
	Fallback       Backend
	Policy         SizePolicy
	TempDir        string
	AttemptTimeout time.Duration
	EnableFallback bool
	MaxConcurrent  int64
	Logger         *slog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		primary:        opts.Primary,
		fallback:       opts.Fallback,
		policy:         opts.Policy,
		tempDir:        opts.TempDir,
		attemptTimeout: opts.AttemptTimeout,
		enableFallback: opts.EnableFallback && opts.Fallback != nil,
		sem:            semaphore.NewWeighted(opts.MaxConcurrent),
		logger:         opts.Logger,
	}
}

// Policy exposes the active size policy (read-only).
func (o *Orchestrator) Policy() SizePolicy { return o.policy }

// Enumerate lists the renditions available for a URL without fetching
// anything. Errors come back already classified as an outcome status.
func (o *Orchestrator) Enumerate(ctx context.Context, rawURL string, match types.PlatformMatch) (*types.MediaInfo, types.OutcomeStatus) {
	info, err := o.primary.Enumerate(ctx, rawURL, match)
	if err != nil {
		return nil, classifyBackendErr(err)
	}
	info.Platform = match.Platform
	return info, types.StatusSuccess
}

// Download runs the full orchestration cycle for one request.
//
// Attempt policy: the best candidate is fetched under the per-attempt
// timeout; a timeout abandons the transfer and retries exactly once with
// the next-lower candidate. A network-class failure retries exactly once
// on the fallback backend. Both counters are independent and bounded at
// one, so a request performs at most three fetches.
func (o *Orchestrator) Download(ctx context.Context, req types.MediaRequest, match types.PlatformMatch) *types.DownloadOutcome {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return outcome(types.StatusBackendError, "download slot wait interrupted")
	}
	defer o.sem.Release(1)

	start := time.Now()

	enumeratedOnFallback := false
	info, err := o.primary.Enumerate(ctx, req.SourceURL, match)
	if err != nil {
		status := classifyBackendErr(err)
		if status == types.StatusBackendError && o.enableFallback {
			info, err = o.fallback.Enumerate(ctx, req.SourceURL, match)
			enumeratedOnFallback = err == nil
		}
		if err != nil {
			o.logger.Error("enumeration failed",
				"platform", string(match.Platform),
				"status", string(status),
				"error", err.Error())
			return outcome(status, enumerateMessage(status))
		}
	}

	candidates := Resolve(info.Renditions, req.RequestedKind, o.policy)
	candidates = pinQuality(candidates, req.Quality)
	if len(candidates) == 0 {
		return outcome(types.StatusTooLarge, "no rendition fits the transfer size limit")
	}

	requestID := uuid.New().String()
	destDir := filepath.Join(o.tempDir, requestID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return outcome(types.StatusBackendError, fmt.Sprintf("temp dir: %v", err))
	}
	// Whatever happens below, the request-scoped directory must not
	// survive this call. The delivered file is moved out first.
	defer os.RemoveAll(destDir)

	var (
		timeoutRetried  bool
		attemptIdx      int
		terminalStatus  types.OutcomeStatus
		terminalMessage string
	)

	// FormatRefs are only meaningful to the backend that minted them, so
	// fetching starts on whichever backend produced the rendition list. A
	// fallback enumeration also consumes the single fallback retry.
	backend := o.primary
	fallbackTried := enumeratedOnFallback
	if enumeratedOnFallback {
		backend = o.fallback
	}
	for {
		if attemptIdx >= len(candidates) {
			terminalStatus, terminalMessage = types.StatusTimeout, "transfer exceeded the time limit"
			break
		}
		candidate := candidates[attemptIdx]

		path, fetchErr := o.fetchOnce(ctx, backend, req.SourceURL, candidate, destDir)
		if fetchErr == nil {
			final, verr := o.verifyAndPromote(path, candidate, requestID)
			if verr != nil {
				terminalStatus, terminalMessage = types.StatusTooLarge, verr.Error()
				break
			}
			o.logger.Info("download complete",
				"platform", string(match.Platform),
				"label", candidate.Label,
				"duration_ms", time.Since(start).Milliseconds())
			out := outcome(types.StatusSuccess, "ok")
			out.LocalPath = final
			chosen := candidate
			out.ChosenRendition = &chosen
			out.Title = info.Title
			return out
		}

		removeArtifacts(destDir)

		switch {
		case errors.Is(fetchErr, context.DeadlineExceeded):
			if timeoutRetried || attemptIdx+1 >= len(candidates) {
				terminalStatus, terminalMessage = types.StatusTimeout, "transfer exceeded the time limit"
			} else {
				timeoutRetried = true
				attemptIdx++
				o.logger.Warn("fetch timed out, degrading quality",
					"next_label", candidates[attemptIdx].Label)
				continue
			}
		case errors.Is(fetchErr, ErrAuthRequired):
			terminalStatus, terminalMessage = types.StatusAuthRequired, enumerateMessage(types.StatusAuthRequired)
		case errors.Is(fetchErr, ErrNotFound):
			terminalStatus, terminalMessage = types.StatusNotFound, enumerateMessage(types.StatusNotFound)
		default:
			if !fallbackTried && o.enableFallback {
				fallbackTried = true
				backend = o.fallback
				o.logger.Warn("primary backend failed, retrying on fallback",
					"error", fetchErr.Error())
				continue
			}
			terminalStatus = types.StatusBackendError
			terminalMessage = "the extractor could not process this link"
		}
		break
	}

	o.logger.Error("download failed",
		"platform", string(match.Platform),
		"status", string(terminalStatus))
	return outcome(terminalStatus, terminalMessage)
}

func (o *Orchestrator) fetchOnce(ctx context.Context, b Backend, rawURL string, r types.Rendition, destDir string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	path, err := b.Fetch(attemptCtx, rawURL, r, destDir, "media")
	if err != nil {
		// Prefer the deadline over whatever secondary error the tool
		// reported while being killed.
		if attemptCtx.Err() == context.DeadlineExceeded {
			return "", context.DeadlineExceeded
		}
		return "", err
	}
	return path, nil
}

// verifyAndPromote re-checks the on-disk size against the hard ceiling
// (estimates from enumeration may be stale or absent) and moves the file
// out of the request-scoped directory so the deferred cleanup cannot eat
// it. Oversized files are deleted, never returned.
func (o *Orchestrator) verifyAndPromote(path string, r types.Rendition, requestID string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}
	if limit := o.policy.HardCeiling(r.Kind); fi.Size() > limit {
		os.Remove(path)
		return "", fmt.Errorf("file is %d bytes, over the %d byte limit", fi.Size(), limit)
	}

	final := filepath.Join(o.tempDir, requestID+"_"+filepath.Base(path))
	if err := os.Rename(path, final); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("moving download: %w", err)
	}
	return final, nil
}

// pinQuality trims candidates above a user-picked label so the pinned
// quality is attempted first; degradation below it on timeout still works.
func pinQuality(candidates []types.Rendition, label string) []types.Rendition {
	if label == "" {
		return candidates
	}
	limit := QualityRank(label)
	for i, c := range candidates {
		if QualityRank(c.Label) <= limit {
			return candidates[i:]
		}
	}
	return nil
}

func removeArtifacts(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.Remove(filepath.Join(dir, e.Name()))
	}
}

func classifyBackendErr(err error) types.OutcomeStatus {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return types.StatusAuthRequired
	case errors.Is(err, ErrNotFound):
		return types.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return types.StatusTimeout
	default:
		return types.StatusBackendError
	}
}

func enumerateMessage(status types.OutcomeStatus) string {
	switch status {
	case types.StatusAuthRequired:
		return "this content needs a signed-in session; refresh the cookie file and try again"
	case types.StatusNotFound:
		return "content not found; it may be private or deleted"
	case types.StatusTimeout:
		return "the platform took too long to answer"
	default:
		return "the extractor could not process this link"
	}
}

func outcome(status types.OutcomeStatus, msg string) *types.DownloadOutcome {
	return &types.DownloadOutcome{Status: status, Message: msg}
}
