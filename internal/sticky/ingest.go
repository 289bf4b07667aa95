package sticky

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ivashkin-reddit/ukpol-sticky/internal/kit"
	"github.com/ivashkin-reddit/ukpol-sticky/pkg/logx"
)

// ingestRefreshDelay decouples config application from the post mutations a
// refresh cycle performs.
const ingestRefreshDelay = 2 * time.Second

// Ingestor validates externally supplied configuration and commits it as a
// whole-list snapshot guarded by a revision marker. Bad config never
// replaces a good snapshot; it goes to the operator instead.
type Ingestor struct {
	state    *StateStore
	jobs     kit.Jobs
	notifier kit.Notifier
	now      func() time.Time
	log      logx.Logger

	// lastRejected keeps a poll-driven source from re-notifying the
	// operator about the same bad revision every interval. Only applied
	// revisions are persisted, so this lives in memory; a restart
	// re-notifies once, which is acceptable.
	lastRejected string
}

func NewIngestor(state *StateStore, jobs kit.Jobs, notifier kit.Notifier, log logx.Logger) *Ingestor {
	return &Ingestor{
		state:    state,
		jobs:     jobs,
		notifier: notifier,
		now:      time.Now,
		log:      log,
	}
}

// Apply ingests raw configuration content tied to a revision marker.
//
// Unchanged revisions are skipped, applied or rejected alike: a poll-driven
// source redelivering a bad revision must not renotify the operator on every
// interval. Validation failures notify the operator once and leave the
// previous snapshot authoritative; they are not errors from the caller's
// point of view. On success the snapshot and revision are persisted and a
// refresh cycle is scheduled shortly after.
func (i *Ingestor) Apply(ctx context.Context, content, revision string) error {
	last, err := i.state.Revision(ctx)
	if err != nil {
		return err
	}
	if revision != "" && (revision == last || revision == i.lastRejected) {
		i.log.Debug("config revision unchanged, skipping", logx.String("revision", revision))
		return nil
	}

	entries, problems := ValidateConfig(SplitDocuments(content))
	if len(problems) > 0 {
		i.lastRejected = revision
		i.log.Warn("config rejected", logx.Int("problems", len(problems)))
		i.notifyOperator(ctx, "Invalid sticky post configuration",
			"The updated configuration is invalid and was not applied.\n\nErrors:\n"+
				bulleted(problems)+
				"\nThe existing configuration remains in use until this is fixed.")
		return nil
	}

	for _, e := range entries {
		pattern, ok := TitleDateFormat(e.Title)
		if !ok {
			continue
		}
		if _, err := FormatDate(i.now(), pattern); err != nil {
			i.lastRejected = revision
			i.log.Warn("config rejected: bad title date format",
				logx.String("entry", e.Name), logx.Err(err))
			i.notifyOperator(ctx, fmt.Sprintf("Invalid date format in config %q", e.Name),
				fmt.Sprintf("The date format %q in the title of %q is not a valid format string.\n\n%v\n\nThe existing configuration remains in use until this is fixed.",
					pattern, e.Name, err))
			return nil
		}
	}

	i.lastRejected = ""

	if err := i.state.SetRevision(ctx, revision); err != nil {
		return err
	}
	if err := i.state.SaveSnapshot(ctx, entries); err != nil {
		return err
	}

	if _, err := i.jobs.ScheduleAt(ctx, RefreshJobName, i.now().Add(ingestRefreshDelay)); err != nil {
		return err
	}

	i.log.Info("config applied",
		logx.Int("entries", len(entries)), logx.String("revision", revision))
	return nil
}

func (i *Ingestor) notifyOperator(ctx context.Context, subject, body string) {
	if i.notifier == nil {
		return
	}
	err := i.notifier.Notify(ctx, kit.Notification{Subject: subject, Body: body, Priority: 5})
	if err != nil {
		i.log.Warn("operator notification failed", logx.Err(err))
	}
}

func bulleted(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}
