package robots

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Rules is a parsed robots.txt.
type Rules struct {
	Groups []Group
}

type Group struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay *time.Duration
}

// Manager fetches robots.txt once per host and answers allow queries for the
// report fetcher. A missing robots.txt (4xx) allows everything; a server error
// or network failure is returned to the caller so the date can be retried.
type Manager struct {
	HTTPClient *http.Client
	UserAgent  string

	mu    sync.Mutex
	rules map[string]Rules
}

// Allowed reports whether rawURL may be fetched, and the crawl delay that
// applies to this user agent.
func (m *Manager) Allowed(ctx context.Context, rawURL string) (bool, *time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, nil, fmt.Errorf("parse url: %w", err)
	}
	rules, err := m.rulesFor(ctx, u)
	if err != nil {
		return false, nil, err
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.IsAllowed(m.UserAgent, path), rules.CrawlDelayFor(m.UserAgent), nil
}

func (m *Manager) rulesFor(ctx context.Context, u *url.URL) (Rules, error) {
	host := strings.ToLower(u.Scheme + "://" + u.Host)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rules == nil {
		m.rules = map[string]Rules{}
	}
	if r, ok := m.rules[host]; ok {
		return r, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return Rules{}, fmt.Errorf("new request: %w", err)
	}
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Rules{}, fmt.Errorf("fetch robots: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Rules{}, fmt.Errorf("fetch robots: server error: %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		m.rules[host] = Rules{}
		return Rules{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Rules{}, fmt.Errorf("fetch robots: unexpected status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return Rules{}, fmt.Errorf("read robots: %w", err)
	}
	r := Parse(string(data))
	m.rules[host] = r
	return r, nil
}

// Parse reads robots.txt text into groups.
func Parse(text string) Rules {
	scanner := bufio.NewScanner(strings.NewReader(text))
	var groups []Group
	current := Group{}
	flush := func() {
		if len(current.Agents) == 0 && len(current.Allow) == 0 && len(current.Disallow) == 0 && current.CrawlDelay == nil {
			return
		}
		groups = append(groups, current)
		current = Group{}
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		switch key {
		case "user-agent", "useragent":
			if len(current.Agents) > 0 && (len(current.Allow) > 0 || len(current.Disallow) > 0 || current.CrawlDelay != nil) {
				flush()
			}
			current.Agents = append(current.Agents, strings.ToLower(val))
		case "allow":
			current.Allow = append(current.Allow, val)
		case "disallow":
			current.Disallow = append(current.Disallow, val)
		case "crawl-delay", "crawldelay":
			if d, err := time.ParseDuration(val + "s"); err == nil && val != "" {
				current.CrawlDelay = &d
			}
		}
	}
	flush()
	return Rules{Groups: groups}
}

// IsAllowed applies the most specific user-agent group: the longest matching
// Allow/Disallow pattern wins, Allow wins ties, and no match means allowed.
func (r Rules) IsAllowed(userAgent, path string) bool {
	idx := r.selectGroup(userAgent)
	if idx < 0 {
		return true
	}
	g := r.Groups[idx]
	best := -1
	allow := true
	check := func(patterns []string, isAllow bool) {
		for _, p := range patterns {
			if p == "" || !patternMatches(p, path) {
				continue
			}
			score := len(strings.ReplaceAll(strings.TrimSuffix(p, "$"), "*", ""))
			if score > best || (score == best && isAllow && !allow) {
				best = score
				allow = isAllow
			}
		}
	}
	check(g.Disallow, false)
	check(g.Allow, true)
	return allow
}

// CrawlDelayFor returns the crawl delay of the matching group, if any.
func (r Rules) CrawlDelayFor(userAgent string) *time.Duration {
	idx := r.selectGroup(userAgent)
	if idx < 0 {
		return nil
	}
	return r.Groups[idx].CrawlDelay
}

// selectGroup prefers the longest agent token contained in the user agent;
// "*" matches anything but loses to a named match.
func (r Rules) selectGroup(userAgent string) int {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	bestIdx, bestScore := -1, -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			score := -1
			switch {
			case a == "*":
				score = 0
			case a != "" && strings.Contains(ua, a):
				score = len(a)
			}
			if score > bestScore {
				bestScore, bestIdx = score, i
			}
		}
	}
	return bestIdx
}

// patternMatches supports '*' wildcards and a trailing '$' anchor, matching
// from the start of the path.
func patternMatches(pattern, path string) bool {
	anchorEnd := strings.HasSuffix(pattern, "$")
	p := strings.TrimSuffix(pattern, "$")
	var b strings.Builder
	b.WriteString("^")
	for _, part := range strings.Split(p, "*") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	expr := strings.TrimSuffix(b.String(), ".*")
	if anchorEnd {
		expr += "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
