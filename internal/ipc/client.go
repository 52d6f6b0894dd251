package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req any, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start polling.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartRequest, StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop polling.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// PipelineList returns watched pipelines in display order.
func (c *Client) PipelineList() (*PipelineListResponse, error) {
	return call[PipelineListRequest, PipelineListResponse](c, "PipelineList", PipelineListRequest{})
}

// PipelineAdd starts watching a pipeline.
func (c *Client) PipelineAdd(req PipelineAddRequest) (*PipelineAddResponse, error) {
	return call[PipelineAddRequest, PipelineAddResponse](c, "PipelineAdd", req)
}

// PipelineRemove stops watching a pipeline.
func (c *Client) PipelineRemove(id string) (*PipelineRemoveResponse, error) {
	return call[PipelineRemoveRequest, PipelineRemoveResponse](c, "PipelineRemove", PipelineRemoveRequest{ID: id})
}

// Refresh fetches one pipeline, or every pipeline when id is empty.
func (c *Client) Refresh(id string) (*RefreshResponse, error) {
	return call[RefreshRequest, RefreshResponse](c, "Refresh", RefreshRequest{ID: id})
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationRequest, TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// SetAlerts mutes or unmutes alert delivery.
func (c *Client) SetAlerts(enabled bool) (*SetAlertsResponse, error) {
	return call[SetAlertsRequest, SetAlertsResponse](c, "SetAlerts", SetAlertsRequest{Enabled: enabled})
}
