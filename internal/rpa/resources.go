package rpa

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
)

type PlanStatus string

const (
	PlanStatusInPreparation PlanStatus = "IN_PREPARATION"
	PlanStatusScheduled     PlanStatus = "SCHEDULED"
	PlanStatusRunning       PlanStatus = "RUNNING"
	PlanStatusSucceeded     PlanStatus = "SUCCEEDED"
	PlanStatusFailed        PlanStatus = "FAILED"
	PlanStatusKilled        PlanStatus = "KILLED"
)

type FileRole string

const (
	FileRoleDSM        FileRole = "DSM_GEOTIFF"
	FileRoleBoundary   FileRole = "BOUNDARY_FILE"
	FileRoleSites      FileRole = "UNORGANIZED_SITES"
	FileRoleDeviceList FileRole = "DEVICE_LIST"
)

type FileStatus string

const (
	FileStatusProcessing FileStatus = "PROCESSING"
	FileStatusReady      FileStatus = "READY"
	FileStatusFailed     FileStatus = "FAILED"
)

type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Plan struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Status PlanStatus `json:"status"`
}

type InputFile struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Role   FileRole   `json:"file_role"`
	Status FileStatus `json:"file_status"`
}

type CreatePlanRequest struct {
	FolderID       string `json:"-"`
	Name           string `json:"name"`
	DSMFileID      string `json:"dsm_file_id"`
	BoundaryFileID string `json:"boundary_file_id"`
	SitesFileID    string `json:"sites_file_id"`
	DeviceFileID   string `json:"device_file_id,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func fields(names ...string) url.Values {
	q := url.Values{}
	for _, n := range names {
		q.Add("fields", n)
	}
	return q
}

func (c *Client) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	var resp idResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		ID:     c.partnerID,
		Edge:   "tg_plan_folders",
		JSON:   map[string]string{"name": name},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, errors.New("rpa: folder created without id")
	}
	return &Folder{ID: resp.ID, Name: name}, nil
}

func (c *Client) GetFolder(ctx context.Context, id string) (*Folder, error) {
	var f Folder
	if err := c.Do(ctx, Request{ID: id, Query: fields("id", "name")}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) GetPlan(ctx context.Context, id string) (*Plan, error) {
	var p Plan
	if err := c.Do(ctx, Request{ID: id, Query: fields("id", "name", "status")}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlan returns the new remote plan id. An empty id means the remote
// system accepted the request but did not create a plan.
func (c *Client) CreatePlan(ctx context.Context, req CreatePlanRequest) (string, error) {
	var resp idResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		ID:     req.FolderID,
		Edge:   "tg_plans",
		JSON:   req,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) LaunchPlan(ctx context.Context, id string) (bool, error) {
	var resp successResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, ID: id, Edge: "launch"}, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) CancelPlan(ctx context.Context, id string) (bool, error) {
	var resp successResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, ID: id, Edge: "cancel"}, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) GetInputFile(ctx context.Context, id string) (*InputFile, error) {
	var f InputFile
	if err := c.Do(ctx, Request{ID: id, Query: fields("id", "name", "file_role", "file_status")}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadFile streams the bytes of a remote input file. The caller closes
// the returned reader.
func (c *Client) DownloadFile(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.Send(ctx, Request{ID: id, Edge: "download"})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
