package mcp

import (
	"context"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/devbydaniel/watson/internal/domain/meeting"
	"github.com/devbydaniel/watson/internal/store"
)

// Reader is the read side of the backend. backend.Client satisfies it.
type Reader interface {
	ListMeetings(ctx context.Context) ([]meeting.Ref, error)
	GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error)
	RecordingState(ctx context.Context) (meeting.RecordingState, error)
}

// Resummarizer is usecases.Resummarize.
type Resummarizer interface {
	ResummarizeWithPrompt(ctx context.Context, id, prompt string) (string, error)
}

// Retranscriber is usecases.Retranscribe.
type Retranscriber interface {
	Start(ctx context.Context, id string, lang meeting.Language) (<-chan error, error)
}

// JobLister is the job ledger. store.Store satisfies it.
type JobLister interface {
	ListJobs(ctx context.Context, limit int) ([]store.Job, error)
	ListJobsForMeeting(ctx context.Context, meetingID string) ([]store.Job, error)
}

// Deps are the services exposed as tools. Jobs may be nil.
type Deps struct {
	Backend         Reader
	Resummarize     Resummarizer
	Retranscribe    Retranscriber
	Jobs            JobLister
	DefaultLanguage meeting.Language
}

// NewServer creates an MCP server exposing meeting tools.
func NewServer(d Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"watson",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("list_meetings",
			mcp.WithDescription("List recorded meetings, newest first, with the number of backend jobs still pending on each."),
		),
		handleListMeetings(d.Backend),
	)

	s.AddTool(
		mcp.NewTool("get_meeting",
			mcp.WithDescription("Get a meeting with its transcript, summary and hand note."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("The meeting uuid"),
			),
		),
		handleGetMeeting(d.Backend),
	)

	s.AddTool(
		mcp.NewTool("recording_state",
			mcp.WithDescription("Get the recorder state: Stopped, Recording or Paused."),
		),
		handleRecordingState(d.Backend),
	)

	s.AddTool(
		mcp.NewTool("resummarize_meeting",
			mcp.WithDescription("Generate the meeting summary again, optionally with a new prompt. Waits for the new summary."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("The meeting uuid"),
			),
			mcp.WithString("prompt",
				mcp.Description("Optional: prompt to summarize with; the stored prompt is used when empty"),
			),
		),
		handleResummarize(d.Resummarize),
	)

	s.AddTool(
		mcp.NewTool("retranscribe_meeting",
			mcp.WithDescription("Start transcribing the meeting audio again and re-summarize it. Returns immediately; the job takes a few minutes."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("The meeting uuid"),
			),
			mcp.WithString("language",
				mcp.Description("Optional: English, Français or 中文 (or En, Fr, Zh)"),
			),
		),
		handleRetranscribe(d.Retranscribe, d.DefaultLanguage),
	)

	if d.Jobs != nil {
		s.AddTool(
			mcp.NewTool("list_jobs",
				mcp.WithDescription("List recent transcription and summarization jobs from the local ledger."),
				mcp.WithString("meeting_id",
					mcp.Description("Optional: only jobs of this meeting"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of jobs to return (default: 20)"),
				),
			),
			handleListJobs(d.Jobs),
		)
	}

	return s
}

func textJSON(v any) (*mcp.CallToolResult, error) {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleListMeetings(b Reader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		refs, err := b.ListMeetings(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list meetings: %v", err)), nil
		}
		sort.SliceStable(refs, func(i, j int) bool {
			ti, errI := refs[i].StartedAt()
			tj, errJ := refs[j].StartedAt()
			if errI != nil || errJ != nil {
				return refs[i].Datetime > refs[j].Datetime
			}
			return ti.After(tj)
		})
		return textJSON(refs)
	}
}

func handleGetMeeting(b Reader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		m, err := b.GetMeeting(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get meeting: %v", err)), nil
		}
		return textJSON(m)
	}
}

func handleRecordingState(b Reader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state, err := b.RecordingState(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get recording state: %v", err)), nil
		}
		return mcp.NewToolResultText(string(state)), nil
	}
}

func handleResummarize(r Resummarizer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		summary, err := r.ResummarizeWithPrompt(ctx, id, req.GetString("prompt", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to resummarize: %v", err)), nil
		}
		return mcp.NewToolResultText(summary), nil
	}
}

func handleRetranscribe(r Retranscriber, def meeting.Language) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		lang := def
		if l := req.GetString("language", ""); l != "" {
			if lang, err = meeting.ParseLanguage(l); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		if lang == "" {
			lang = meeting.English
		}
		// the job outlives this request; App.Close waits for it
		if _, err := r.Start(context.WithoutCancel(ctx), id, lang); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to retranscribe: %v", err)), nil
		}
		return mcp.NewToolResultText("Transcription started. Follow it with list_jobs; get_meeting shows the new transcript and summary once it is done."), nil
	}
}

func handleListJobs(j JobLister) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var (
			list []store.Job
			err  error
		)
		if id := req.GetString("meeting_id", ""); id != "" {
			list, err = j.ListJobsForMeeting(ctx, id)
		} else {
			list, err = j.ListJobs(ctx, req.GetInt("limit", 20))
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list jobs: %v", err)), nil
		}
		return textJSON(list)
	}
}
