package mistakes

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Game is a finished game fetched from the platform, with moves in SAN.
type Game struct {
	ID    string
	White string
	Black string
	Moves []string
}

// LichessClient fetches a user's recent games from the Lichess export API
// (NDJSON, one game per line).
type LichessClient struct {
	baseURL string
	token   string
	http    *fasthttp.Client
	timeout time.Duration
}

type LichessOption func(*LichessClient)

func WithTimeout(d time.Duration) LichessOption {
	return func(c *LichessClient) { c.timeout = d }
}

func WithToken(token string) LichessOption {
	return func(c *LichessClient) { c.token = strings.TrimSpace(token) }
}

func NewLichessClient(baseURL string, opts ...LichessOption) *LichessClient {
	c := &LichessClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LichessClient) FetchRecentGames(ctx context.Context, username string, max int) ([]Game, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username required")
	}
	if max <= 0 {
		max = 10
	}

	url := c.baseURL + "/api/games/user/" + username + "?moves=true&max=" + strconv.Itoa(max)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.Set("Accept", "application/x-ndjson")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("fetch games: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("fetch games: unexpected status %d", resp.StatusCode())
	}

	return parseGamesNDJSON(resp.Body())
}

type lichessGame struct {
	ID      string `json:"id"`
	Players struct {
		White struct {
			User struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"white"`
		Black struct {
			User struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"black"`
	} `json:"players"`
	Moves string `json:"moves"`
}

func parseGamesNDJSON(body []byte) ([]Game, error) {
	var games []Game
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var lg lichessGame
		if err := json.Unmarshal(line, &lg); err != nil {
			// A malformed line loses one game, not the batch.
			continue
		}
		if lg.ID == "" || lg.Moves == "" {
			continue
		}
		games = append(games, Game{
			ID:    lg.ID,
			White: lg.Players.White.User.Name,
			Black: lg.Players.Black.User.Name,
			Moves: strings.Fields(lg.Moves),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan games: %w", err)
	}
	return games, nil
}
