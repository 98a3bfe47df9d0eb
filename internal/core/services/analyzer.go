package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// maxListedDirs caps the directory overview sent with every iteration.
const maxListedDirs = 200

// CodebaseAnalyzer explores a SourceTree in bounded chunks and produces the
// ordered AnalysisNote sequence. The work queue and budget are local to one
// Analyze call.
type CodebaseAnalyzer struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	settings domain.PipelineSettings
	retrier  *Retrier
}

// NewCodebaseAnalyzer creates an analyzer. The LLM should be the
// exploration (mini) model.
func NewCodebaseAnalyzer(llm driven.LLMService, prompts driven.PromptStore, settings domain.PipelineSettings) *CodebaseAnalyzer {
	return &CodebaseAnalyzer{
		llm:      llm,
		prompts:  prompts,
		settings: settings,
		retrier:  NewRetrier(settings.RetryLimit, settings.PerCallTimeout),
	}
}

// workItem is one queued group of files.
type workItem struct {
	path     string
	depth    int
	files    []string
	followUp bool
	order    int
}

// iterationResult is sent back by an in-flight exploration call.
type iterationResult struct {
	seq   int
	chunk domain.ExplorationChunk
	reply explorationReply
	err   error
}

// exploration is the per-run state of one Analyze call.
type exploration struct {
	tree     *domain.SourceTree
	budget   *ExplorationBudget
	queue    []*workItem
	shown    map[string]bool
	notes    []domain.AnalysisNote
	nextSeq  int
	order    int
	overview string
}

// Analyze explores the tree and returns the notes in issue order.
// It stops when the budget is exhausted, the queue empties, the wall-clock
// limit elapses, or ctx is cancelled. Only cancellation returns an error.
//
//nolint:gocyclo // Dispatcher loop with several independent stop conditions
func (a *CodebaseAnalyzer) Analyze(ctx context.Context, repoName string, tree *domain.SourceTree) (*domain.AnalysisResult, error) {
	system, err := a.prompts.Load(explorePrompt(a.settings.Variant))
	if err != nil {
		return nil, fmt.Errorf("load exploration prompt: %w", err)
	}

	ex := &exploration{
		tree:     tree,
		budget:   NewExplorationBudget(a.settings),
		shown:    make(map[string]bool),
		overview: directoryOverview(tree),
	}
	ex.seed()

	deadlineCtx, cancel := context.WithTimeout(ctx, a.settings.MaxWallClock)
	defer cancel()

	limit := a.settings.ConcurrencyLimit
	if limit < 1 {
		limit = 1
	}
	results := make(chan iterationResult, limit)
	inFlight := 0
	failed := 0
	var stop domain.StopReason

	logger.Info("Exploring %d files (%d chars) with budget %d chars / %d iterations",
		tree.Len(), tree.TotalSize(), a.settings.MaxExplorationBudget, a.settings.MaxIterations)

	for {
		if stop == "" {
			switch {
			case ctx.Err() != nil:
				stop = domain.StopCancelled
			case deadlineCtx.Err() != nil:
				stop = domain.StopDeadline
			}
		}

		for stop == "" && inFlight < limit {
			chunk, ok, reason := ex.next()
			if reason != "" {
				stop = reason
				break
			}
			if !ok {
				break
			}
			seq := ex.nextSeq
			ex.nextSeq++
			for _, f := range chunk.Files {
				ex.shown[f.Path] = true
			}
			summary := rollingSummary(ex.notes, a.settings.SummaryWindow)
			inFlight++
			logger.Debug("Iteration %d: %s (%d files, %d chars)", seq, displayPath(chunk.Path), len(chunk.Files), chunk.Size())
			go func(seq int, chunk domain.ExplorationChunk, summary string) {
				reply, err := a.explore(deadlineCtx, system, repoName, ex.overview, summary, chunk)
				results <- iterationResult{seq: seq, chunk: chunk, reply: reply, err: err}
			}(seq, chunk, summary)
		}

		if inFlight == 0 {
			if stop == "" {
				stop = ex.drainedReason()
			}
			break
		}

		res := <-results
		inFlight--
		note := domain.AnalysisNote{
			Seq:       res.seq,
			Path:      res.chunk.Path,
			Truncated: res.chunk.Truncated,
		}
		if res.err != nil {
			failed++
			note.Failed = true
			if isCancellation(res.err) {
				logger.Debug("Exploration of %s abandoned: %v", displayPath(res.chunk.Path), res.err)
			} else {
				logger.Warn("Exploration of %s failed, continuing without it: %v", displayPath(res.chunk.Path), res.err)
			}
		} else {
			note.Text = res.reply.Observations
			note.FollowUps = ex.acceptFollowUps(res.reply.FollowUpPaths, a.settings.MaxFollowUps)
		}
		ex.notes = append(ex.notes, note)
	}

	sort.SliceStable(ex.notes, func(i, j int) bool { return ex.notes[i].Seq < ex.notes[j].Seq })

	result := &domain.AnalysisResult{
		Notes:            ex.notes,
		Usage:            ex.budget.Usage(),
		StopReason:       stop,
		FailedIterations: failed,
	}
	logger.Info("Exploration stopped (%s) after %d iterations, %d chars shown, %d failed",
		stop, result.Usage.Iterations, result.Usage.CharsShown, failed)

	if stop == domain.StopCancelled {
		return result, fmt.Errorf("%w: %w", domain.ErrRunCancelled, ctx.Err())
	}
	return result, nil
}

// explore issues one reasoning call for a chunk, with retries.
func (a *CodebaseAnalyzer) explore(
	ctx context.Context,
	system, repoName, overview, summary string,
	chunk domain.ExplorationChunk,
) (explorationReply, error) {
	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: explorationMessage(repoName, overview, summary, chunk)},
	}
	return Retry(ctx, a.retrier, "explore "+displayPath(chunk.Path), func(ctx context.Context) (explorationReply, error) {
		raw, err := a.llm.Chat(ctx, messages, driven.ChatOptions{JSON: true})
		if err != nil {
			return explorationReply{}, err
		}
		return decodeExploration(raw)
	})
}

// seed queues the root-level files as one group and every top-level
// directory as its own group.
func (ex *exploration) seed() {
	var rootFiles []string
	dirs := make(map[string][]string)
	var dirOrder []string
	for _, path := range ex.tree.Paths() {
		idx := strings.IndexByte(path, '/')
		if idx < 0 {
			rootFiles = append(rootFiles, path)
			continue
		}
		top := path[:idx]
		if _, ok := dirs[top]; !ok {
			dirOrder = append(dirOrder, top)
		}
		dirs[top] = append(dirs[top], path)
	}
	if len(rootFiles) > 0 {
		ex.push(&workItem{path: "", depth: 0, files: rootFiles})
	}
	for _, dir := range dirOrder {
		ex.push(&workItem{path: dir, depth: 1, files: dirs[dir]})
	}
}

func (ex *exploration) push(item *workItem) {
	item.order = ex.order
	ex.order++
	ex.queue = append(ex.queue, item)
}

// remaining drops files that were already shown and returns what is left.
func (ex *exploration) remaining(item *workItem) []string {
	kept := item.files[:0]
	for _, p := range item.files {
		if !ex.shown[p] {
			kept = append(kept, p)
		}
	}
	item.files = kept
	return kept
}

// pop removes and returns the highest priority item that still has files.
// Follow-ups come first in arrival order; other groups are ordered by depth,
// then by remaining file count (largest first), then by path.
func (ex *exploration) pop() *workItem {
	live := ex.queue[:0]
	for _, item := range ex.queue {
		if len(ex.remaining(item)) > 0 {
			live = append(live, item)
		}
	}
	ex.queue = live
	if len(ex.queue) == 0 {
		return nil
	}
	sort.SliceStable(ex.queue, func(i, j int) bool {
		a, b := ex.queue[i], ex.queue[j]
		if a.followUp != b.followUp {
			return a.followUp
		}
		if a.followUp {
			return a.order < b.order
		}
		if a.depth != b.depth {
			return a.depth < b.depth
		}
		if len(a.files) != len(b.files) {
			return len(a.files) > len(b.files)
		}
		return a.path < b.path
	})
	item := ex.queue[0]
	ex.queue = ex.queue[1:]
	return item
}

// next returns the next admitted chunk. ok is false when the queue is empty;
// a non-empty reason means exploration must stop.
func (ex *exploration) next() (chunk domain.ExplorationChunk, ok bool, reason domain.StopReason) {
	for {
		item := ex.pop()
		if item == nil {
			return domain.ExplorationChunk{}, false, ""
		}
		if ex.budget.Exhausted() {
			ex.queue = append(ex.queue, item)
			return domain.ExplorationChunk{}, false, domain.StopBudgetExhausted
		}

		if ex.size(item.files) > ex.budget.MaxChunkSize() && len(item.files) > 1 {
			for _, part := range ex.split(item) {
				ex.push(part)
			}
			continue
		}

		chunk = ex.chunkFor(item)
		if ex.budget.TryAcquire(chunk) {
			return chunk, true, ""
		}
		if len(item.files) > 1 {
			logger.Debug("Budget refused %s (%d chars), splitting", displayPath(item.path), chunk.Size())
			for _, part := range ex.split(item) {
				ex.push(part)
			}
			continue
		}
		logger.Debug("Budget refused %s (%d chars), stopping", displayPath(item.path), chunk.Size())
		return domain.ExplorationChunk{}, false, domain.StopBudgetExhausted
	}
}

// drainedReason classifies an empty queue. The run still counts as budget
// bound when the ceiling was reached by the last chunk, or when a tree larger
// than the budget was only covered by truncating files.
func (ex *exploration) drainedReason() domain.StopReason {
	if ex.budget.Exhausted() {
		return domain.StopBudgetExhausted
	}
	usage := ex.budget.Usage()
	if usage.TruncatedFiles > 0 && ex.tree.TotalSize() > usage.MaxChars {
		return domain.StopBudgetExhausted
	}
	return domain.StopQueueExhausted
}

func (ex *exploration) size(paths []string) int {
	total := 0
	for _, p := range paths {
		f, _ := ex.tree.Get(p)
		total += f.Size()
	}
	return total
}

// chunkFor builds the chunk shown for an item, truncating a lone oversized file.
func (ex *exploration) chunkFor(item *workItem) domain.ExplorationChunk {
	chunk := domain.ExplorationChunk{Path: item.path}
	for _, p := range item.files {
		f, _ := ex.tree.Get(p)
		if cut, truncated := ex.budget.Truncate(f); truncated {
			f = cut
			chunk.Truncated = true
		}
		chunk.Files = append(chunk.Files, f)
	}
	if len(chunk.Files) == 1 {
		chunk.Path = chunk.Files[0].Path
	}
	return chunk
}

// split breaks an item into sub-directory groups plus batches of its direct
// files. A group with a single sub-directory and no direct files descends
// into it, so repeated splits always reach individual files.
func (ex *exploration) split(item *workItem) []*workItem {
	prefix := ""
	if item.path != "" && !ex.isFile(item.path) {
		prefix = item.path + "/"
	}

	var direct []string
	subdirs := make(map[string][]string)
	var subOrder []string
	for _, p := range item.files {
		rel := strings.TrimPrefix(p, prefix)
		idx := strings.IndexByte(rel, '/')
		if idx < 0 {
			direct = append(direct, p)
			continue
		}
		sub := prefix + rel[:idx]
		if _, ok := subdirs[sub]; !ok {
			subOrder = append(subOrder, sub)
		}
		subdirs[sub] = append(subdirs[sub], p)
	}

	var parts []*workItem
	for _, sub := range subOrder {
		parts = append(parts, &workItem{path: sub, depth: strings.Count(sub, "/") + 1, files: subdirs[sub], followUp: item.followUp})
	}
	if len(direct) > 0 {
		if len(parts) == 0 {
			return ex.batches(item, direct)
		}
		parts = append(parts, &workItem{path: item.path, depth: item.depth, files: direct, followUp: item.followUp})
	}
	return parts
}

// batches packs files greedily into groups of at most the chunk size.
// Each returned batch holds fewer files than the input.
func (ex *exploration) batches(item *workItem, files []string) []*workItem {
	limit := ex.budget.MaxChunkSize()
	var out []*workItem
	var cur []string
	curSize := 0
	flush := func() {
		if len(cur) > 0 {
			out = append(out, &workItem{path: item.path, depth: item.depth, files: cur, followUp: item.followUp})
			cur, curSize = nil, 0
		}
	}
	for _, p := range files {
		s := ex.size([]string{p})
		if len(cur) > 0 && curSize+s > limit {
			flush()
		}
		cur = append(cur, p)
		curSize += s
	}
	flush()
	if len(out) == 1 && len(files) > 1 {
		// Everything fit in one batch but the budget refused it: halve.
		half := len(files) / 2
		return []*workItem{
			{path: item.path, depth: item.depth, files: files[:half], followUp: item.followUp},
			{path: item.path, depth: item.depth, files: files[half:], followUp: item.followUp},
		}
	}
	return out
}

func (ex *exploration) isFile(path string) bool {
	_, ok := ex.tree.Get(path)
	return ok
}

// acceptFollowUps queues up to limit requested paths that exist in the tree
// and still have unexplored files. Accepted paths are returned.
func (ex *exploration) acceptFollowUps(paths []string, limit int) []string {
	var accepted []string
	seen := make(map[string]bool)
	for _, raw := range paths {
		if len(accepted) >= limit {
			break
		}
		p := strings.Trim(strings.TrimPrefix(strings.TrimSpace(raw), "./"), "/")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true

		var files []string
		if ex.isFile(p) {
			files = []string{p}
		} else {
			for _, f := range ex.tree.Under(p) {
				files = append(files, f.Path)
			}
		}
		var unexplored []string
		for _, f := range files {
			if !ex.shown[f] {
				unexplored = append(unexplored, f)
			}
		}
		if len(unexplored) == 0 {
			continue
		}
		ex.push(&workItem{path: p, depth: strings.Count(p, "/") + 1, files: unexplored, followUp: true})
		accepted = append(accepted, p)
	}
	return accepted
}

// rollingSummary returns the tail of the completed notes, bounded by window.
func rollingSummary(notes []domain.AnalysisNote, window int) string {
	if window <= 0 || len(notes) == 0 {
		return ""
	}
	ordered := make([]domain.AnalysisNote, len(notes))
	copy(ordered, notes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	var b strings.Builder
	for _, n := range ordered {
		if n.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", displayPath(n.Path), n.Text)
	}
	return truncateTail(b.String(), window)
}

// directoryOverview lists the directories of the tree, capped.
func directoryOverview(tree *domain.SourceTree) string {
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range tree.Files() {
		d := f.Dir()
		for d != "" && !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
			idx := strings.LastIndexByte(d, '/')
			if idx < 0 {
				break
			}
			d = d[:idx]
		}
	}
	sort.Strings(dirs)
	more := 0
	if len(dirs) > maxListedDirs {
		more = len(dirs) - maxListedDirs
		dirs = dirs[:maxListedDirs]
	}
	out := strings.Join(dirs, "\n")
	if more > 0 {
		out += fmt.Sprintf("\n... and %d more", more)
	}
	return out
}

func explorationMessage(repoName, overview, summary string, chunk domain.ExplorationChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repoName)
	fmt.Fprintf(&b, "Now showing: %s (%d files)\n", displayPath(chunk.Path), len(chunk.Files))
	if chunk.Truncated {
		b.WriteString("Note: oversized files were truncated to their first part.\n")
	}
	if overview != "" {
		b.WriteString("\nDirectories in the repository:\n")
		b.WriteString(overview)
		b.WriteString("\n")
	}
	if summary != "" {
		b.WriteString("\nObservations so far:\n")
		b.WriteString(summary)
	}
	b.WriteString("\nFiles:\n")
	for _, f := range chunk.Files {
		fmt.Fprintf(&b, "\n=== %s ===\n%s\n", f.Path, f.Text())
	}
	return b.String()
}

func explorePrompt(v domain.SchemaVariant) string {
	if v == domain.SchemaStrict {
		return driven.PromptExploreStrict
	}
	return driven.PromptExplore
}

func displayPath(p string) string {
	if p == "" {
		return "(root)"
	}
	return p
}

// isCancellation reports whether err stems from run cancellation.
func isCancellation(err error) bool {
	return errors.Is(err, domain.ErrRunCancelled) || errors.Is(err, context.Canceled)
}
