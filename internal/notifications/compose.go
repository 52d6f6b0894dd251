package notifications

import "buildwatch/internal/status"

// Content is the rendered alert for one change.
type Content struct {
	Title      string
	Body       string
	ChangeID   string
	PipelineID string
	Kind       status.ChangeKind
	Result     status.Result
	Tags       []string
	Priority   string
	ClickURL   string
}

const (
	bodyStarted       = "Build started."
	bodyFixed         = "Recent changes fixed the build."
	bodySucceeded     = "Build completed successfully."
	bodyBroke         = "Recent changes broke the build."
	bodyStillBroken   = "The build is still broken."
	bodyIndeterminate = "Build completed with an indeterminate result."
)

// Compose renders a change. It returns false for change kinds it does not know.
func Compose(change status.StatusChange) (Content, bool) {
	content := Content{
		Title:      change.Pipeline.Name,
		ChangeID:   change.ID,
		PipelineID: change.Pipeline.ID,
		Kind:       change.Kind,
		ClickURL:   clickURL(change.Pipeline.Status),
	}
	if content.Title == "" {
		content.Title = change.Pipeline.ID
	}

	switch change.Kind {
	case status.ChangeStart:
		content.Body = bodyStarted
		last := change.Pipeline.Status.LastBuild
		if last == nil {
			last = change.PreviousStatus.LastBuild
		}
		if fact := last.DescribeOutcome(); fact != "" {
			content.Body += "\nLast build " + fact + "."
		}
		content.Tags = []string{"buildwatch", "construction"}
		return content, true
	case status.ChangeCompletion:
		next := resultOf(change.Pipeline.Status.LastBuild)
		previous := resultOf(change.PreviousStatus.LastBuild)
		content.Result = next
		content.Body, content.Tags, content.Priority = completionText(next, previous)
		return content, true
	default:
		return Content{}, false
	}
}

func completionText(next, previous status.Result) (string, []string, string) {
	switch next {
	case status.ResultSuccess:
		if previous == status.ResultFailure {
			return bodyFixed, []string{"buildwatch", "tada"}, ""
		}
		return bodySucceeded, []string{"buildwatch", "white_check_mark"}, ""
	case status.ResultFailure:
		if previous == status.ResultFailure {
			return bodyStillBroken, []string{"buildwatch", "x"}, "high"
		}
		return bodyBroke, []string{"buildwatch", "rotating_light"}, "high"
	default:
		return bodyIndeterminate, []string{"buildwatch", "grey_question"}, ""
	}
}

func resultOf(build *status.Build) status.Result {
	if build == nil || build.Result == "" {
		return status.ResultUnknown
	}
	return build.Result
}

func clickURL(st status.Status) string {
	if st.LastBuild != nil && st.LastBuild.WebURL != "" {
		return st.LastBuild.WebURL
	}
	return st.WebURL
}
