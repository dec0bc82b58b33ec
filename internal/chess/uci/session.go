package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultReadyTimeout = 4 * time.Second
	stopGraceTimeout    = 600 * time.Millisecond
	mateValue           = 30000
)

type Options struct {
	Threads int
	HashMB  int
	MultiPV int
}

type Limits struct {
	Depth          int
	MoveTimeMillis int
}

// Candidate is one engine line from a MultiPV search.
type Candidate struct {
	Move      string
	EvalCP    int
	EvalOK    bool
	Principal []string
}

// Session owns a single engine process speaking the UCI protocol over pipes.
// A single reader goroutine feeds lines into a channel so an abandoned read
// (deadline expiry) never leaves a second reader racing on stdout.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan lineResult
	done   chan struct{}
	closed sync.Once
	mu     sync.Mutex
	search sync.Mutex

	// stale marks a bestmove still owed by an abandoned search. The next
	// search must drain it first or the late answer would be read as its
	// own.
	stale bool
}

type lineResult struct {
	line string
	err  error
}

func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan lineResult, 64),
		done:  make(chan struct{}),
	}
	go s.readLoop(bufio.NewReader(stdoutPipe))

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type SearchRequest struct {
	FEN    string
	Limits Limits
}

type SearchResponse struct {
	Candidates []Candidate
	BestMove   string
	// Partial is set when the search deadline expired before the engine
	// reported bestmove; Candidates holds whatever had streamed by then.
	Partial bool
}

// Search runs a single go command and collects info lines until bestmove.
// When the deadline derived from Limits expires it sends "stop" and returns
// the partial state instead of failing: an expired budget is a normal
// outcome for callers, not an error.
func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if s.stale {
		if err := s.drainStale(ctx); err != nil {
			return SearchResponse{}, err
		}
	}

	if err := s.send(buildPositionCommand(req.FEN)); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}

	goTokens, err := buildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}
	if err := s.send(strings.Join(goTokens, " ") + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Limits))
	defer cancel()

	candidates := make(map[int]Candidate)

	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			if searchCtx.Err() == nil {
				return SearchResponse{}, fmt.Errorf("read line: %w", err)
			}
			return s.stopAndDrain(ctx, candidates)
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if mv, cand, ok := parseInfo(line); ok {
				candidates[mv] = cand
			}
		case strings.HasPrefix(line, "bestmove"):
			return SearchResponse{Candidates: collapseCandidates(candidates), BestMove: parseBestMove(line)}, nil
		}
	}
}

// stopAndDrain asks the engine to stop and keeps harvesting until bestmove
// arrives or a short grace window passes. Whatever was collected is returned
// as a partial response.
func (s *Session) stopAndDrain(ctx context.Context, candidates map[int]Candidate) (SearchResponse, error) {
	s.stale = true
	if err := s.send("stop\n"); err != nil {
		return SearchResponse{Candidates: collapseCandidates(candidates), Partial: true}, nil
	}

	graceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopGraceTimeout)
	defer cancel()

	for {
		line, err := s.readLine(graceCtx)
		if err != nil {
			return SearchResponse{Candidates: collapseCandidates(candidates), Partial: true}, nil
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if mv, cand, ok := parseInfo(line); ok {
				candidates[mv] = cand
			}
		case strings.HasPrefix(line, "bestmove"):
			s.stale = false
			return SearchResponse{
				Candidates: collapseCandidates(candidates),
				BestMove:   parseBestMove(line),
				Partial:    true,
			}, nil
		}
	}
}

// drainStale consumes output still owed by an abandoned search. Failure to
// reach its bestmove within the grace window is a transport error; the
// caller releases the session as broken rather than risk a stale answer.
func (s *Session) drainStale(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, stopGraceTimeout)
	defer cancel()

	for {
		line, err := s.readLine(drainCtx)
		if err != nil {
			return fmt.Errorf("drain abandoned search: %w", err)
		}
		if strings.HasPrefix(line, "bestmove") {
			s.stale = false
			return nil
		}
	}
}

func parseBestMove(line string) string {
	parts := strings.Fields(line)
	if len(parts) >= 2 && parts[1] != "(none)" {
		return parts[1]
	}
	return ""
}

func buildPositionCommand(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return "position startpos\n"
	}
	return "position fen " + fen + "\n"
}

func validateOptions(opt Options) error {
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	if opt.MultiPV <= 0 {
		return fmt.Errorf("multipv must be > 0: %d", opt.MultiPV)
	}
	return nil
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return args, nil
}

// computeSearchTimeout is the hard wall for waiting on bestmove, set
// slightly above the requested movetime so a well-behaved engine terminates
// itself first; the stop handshake covers the rest.
func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond + 500*time.Millisecond
	}
	if l.Depth > 0 {
		base := time.Duration(l.Depth) * 300 * time.Millisecond
		if base < 4*time.Second {
			base = 4 * time.Second
		}
		if base > 20*time.Second {
			base = 20 * time.Second
		}
		return base
	}
	return 4 * time.Second
}

func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return 0, Candidate{}, false
	}
	var (
		multipv = 1
		evalCP  int
		evalSet bool
		pvIdx   = -1
	)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				val := parts[i+2]
				switch kind {
				case "cp":
					if v, err := strconv.Atoi(val); err == nil {
						evalCP = v
						evalSet = true
					}
				case "mate":
					if v, err := strconv.Atoi(val); err == nil {
						if v >= 0 {
							evalCP = mateValue
						} else {
							evalCP = -mateValue
						}
						evalSet = true
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return 0, Candidate{}, false
	}
	principal := parts[pvIdx:]

	cand := Candidate{
		Move:      principal[0],
		EvalCP:    evalCP,
		EvalOK:    evalSet,
		Principal: append([]string(nil), principal...),
	}
	return multipv, cand, true
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		s.closed.Do(func() { close(s.done) })
	}
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) applyOptions(opt Options) error {
	threadCount := opt.Threads
	if threadCount <= 0 {
		threadCount = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threadCount),
		fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB),
		fmt.Sprintf("setoption name MultiPV value %d\n", opt.MultiPV),
		"setoption name Move Overhead value 50\n",
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, "bestmove") {
			// An abandoned search's late answer; settle it here so the
			// next search does not have to.
			s.stale = false
			continue
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLoop(r *bufio.Reader) {
	for {
		line, err := r.ReadString('\n')
		select {
		case s.lines <- lineResult{line: strings.TrimSpace(line), err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-s.lines:
		return res.line, res.err
	}
}
