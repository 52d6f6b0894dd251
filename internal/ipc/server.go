package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"buildwatch/internal/api"
	"buildwatch/internal/daemon"
	"buildwatch/internal/logging"
	"buildwatch/internal/monitor"
)

// ServiceName is the RPC receiver name clients address.
const ServiceName = "Buildwatch"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "CLI commands may fail to reach the daemon"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse CLI commands"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) callContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, timeout)
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("polling start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "polling started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("polling stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	ctx, cancel := s.callContext(5 * time.Second)
	defer cancel()
	st := s.daemon.Status(ctx)
	building, failing, unreachable := api.Summarize(st.Pipelines)
	*resp = StatusResponse{
		Running:          st.Running,
		PID:              st.PID,
		SessionID:        st.SessionID,
		LockPath:         st.LockFilePath,
		DatabasePath:     st.DatabasePath,
		APIAddress:       st.APIAddress,
		AlertsAuthorized: st.Alerts.Authorized,
		AlertsEnabled:    st.Alerts.AlertsEnabled,
		Publishing:       st.Publishing,
		Building:         building,
		Failing:          failing,
		Unreachable:      unreachable,
		Pipelines:        api.FromPipelines(st.Pipelines),
	}
	if !st.StartedAt.IsZero() {
		resp.StartedAt = st.StartedAt.UTC().Format(time.RFC3339)
	}
	return nil
}

func (s *service) PipelineList(_ PipelineListRequest, resp *PipelineListResponse) error {
	resp.Pipelines = api.FromPipelines(s.daemon.Pipelines())
	return nil
}

func (s *service) PipelineAdd(req PipelineAddRequest, resp *PipelineAddResponse) error {
	ctx, cancel := s.callContext(10 * time.Second)
	defer cancel()
	p, err := s.daemon.AddPipeline(ctx, daemon.PipelineSpec{
		Name:    req.Name,
		Kind:    req.Kind,
		URL:     req.URL,
		Project: req.Project,
		User:    req.User,
		Token:   req.Token,
	})
	if err != nil {
		return err
	}
	resp.Pipeline = api.FromPipeline(p)
	return nil
}

func (s *service) PipelineRemove(req PipelineRemoveRequest, resp *PipelineRemoveResponse) error {
	ctx, cancel := s.callContext(10 * time.Second)
	defer cancel()
	if err := s.daemon.RemovePipeline(ctx, req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) Refresh(req RefreshRequest, resp *RefreshResponse) error {
	ctx, cancel := s.callContext(time.Minute)
	defer cancel()
	err := s.daemon.Refresh(ctx, req.ID)
	if errors.Is(err, monitor.ErrUnknownPipeline) {
		return err
	}
	resp.Errors = api.ErrorStrings(err)
	if req.ID == "" {
		resp.Pipelines = api.FromPipelines(s.daemon.Pipelines())
		return nil
	}
	p, getErr := s.daemon.Pipeline(req.ID)
	if getErr != nil {
		return getErr
	}
	resp.Pipelines = []Pipeline{api.FromPipeline(p)}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	ctx, cancel := s.callContext(30 * time.Second)
	defer cancel()
	sent, message, err := s.daemon.TestNotification(ctx)
	if err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}

func (s *service) SetAlerts(req SetAlertsRequest, resp *SetAlertsResponse) error {
	if err := s.daemon.SetAlertsEnabled(req.Enabled); err != nil {
		return err
	}
	resp.Enabled = req.Enabled
	return nil
}
