package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/ianaindex"

	"buildwatch/internal/status"
)

// CCTray reads the cctray.xml feed published by CruiseControl-compatible
// servers (Jenkins, GoCD, TeamCity, Buildkite, CircleCI, and others).
type CCTray struct {
	http httpGetter
}

type ccProjects struct {
	XMLName  xml.Name    `xml:"Projects"`
	Projects []ccProject `xml:"Project"`
}

type ccProject struct {
	Name            string      `xml:"name,attr"`
	Activity        string      `xml:"activity,attr"`
	LastBuildStatus string      `xml:"lastBuildStatus,attr"`
	LastBuildLabel  string      `xml:"lastBuildLabel,attr"`
	LastBuildTime   string      `xml:"lastBuildTime,attr"`
	WebURL          string      `xml:"webUrl,attr"`
	Messages        []ccMessage `xml:"messages>message"`
}

type ccMessage struct {
	Kind string `xml:"kind,attr"`
	Text string `xml:"text,attr"`
}

var ccTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// FetchStatus implements Fetcher.
func (c *CCTray) FetchStatus(ctx context.Context, server status.Server) (status.Status, error) {
	if strings.TrimSpace(server.URL) == "" {
		return status.Status{}, newFetchError(ErrorConfig, server.URL, errors.New("missing feed url"))
	}
	var auth authFunc
	if server.User != "" || server.Token != "" {
		auth = func(req *http.Request) { req.SetBasicAuth(server.User, server.Token) }
	}
	body, err := c.http.get(ctx, server.URL, "application/xml", auth)
	if err != nil {
		return status.Status{}, err
	}
	return parseCCTray(body, server)
}

func parseCCTray(body []byte, server status.Server) (status.Status, error) {
	var feed ccProjects
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charsetReader
	if err := decoder.Decode(&feed); err != nil {
		return status.Status{}, newFetchError(ErrorParse, server.URL, fmt.Errorf("decode cctray: %w", err))
	}
	for _, project := range feed.Projects {
		if project.Name == server.Project {
			return project.toStatus(), nil
		}
	}
	return status.Status{}, newFetchError(ErrorNotFound, server.URL, fmt.Errorf("project %q not in feed", server.Project))
}

// charsetReader decodes feeds that declare a non-UTF-8 encoding such as
// ISO-8859-1.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

func (p ccProject) toStatus() status.Status {
	st := status.Status{
		Activity: status.ParseActivity(p.Activity),
		WebURL:   strings.TrimSpace(p.WebURL),
	}
	label := strings.TrimSpace(p.LastBuildLabel)
	timestamp := parseCCTime(p.LastBuildTime)
	if label == "" && timestamp.IsZero() {
		return st
	}
	st.LastBuild = &status.Build{
		Label:        label,
		Timestamp:    timestamp,
		Result:       status.ParseResult(p.LastBuildStatus),
		Contributors: p.breakers(),
		WebURL:       st.WebURL,
	}
	return st
}

func (p ccProject) breakers() []string {
	var names []string
	for _, msg := range p.Messages {
		if !strings.EqualFold(msg.Kind, "Breakers") {
			continue
		}
		for _, name := range strings.Split(msg.Text, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				names = append(names, trimmed)
			}
		}
	}
	return names
}

func parseCCTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range ccTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
