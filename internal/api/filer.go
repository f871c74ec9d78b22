package api

import (
	"context"
	"net/url"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/models"
)

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignIn authenticates; the session cookie lands in the client's jar.
func (c *Client) SignIn(ctx context.Context, username, password string) error {
	return c.doJSON(ctx, "POST", "/signin", signInRequest{Username: username, Password: password}, nil)
}

// SignOut ends the server session.
func (c *Client) SignOut(ctx context.Context) error {
	return c.doJSON(ctx, "GET", "/signout", nil, nil)
}

// GetSpaces returns the raw space tuples, shared spaces included.
func (c *Client) GetSpaces(ctx context.Context) ([]models.SpaceTuple, error) {
	var tuples []models.SpaceTuple
	if err := c.doJSON(ctx, "GET", "/filer/space", nil, &tuples); err != nil {
		return nil, err
	}
	return tuples, nil
}

// ListFolder returns the unsorted children of a folder or space.
func (c *Client) ListFolder(ctx context.Context, folderID string) ([]models.Item, error) {
	var items []models.Item
	if err := c.doJSON(ctx, "GET", "/filer/list/"+url.PathEscape(folderID), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type existenceRequest struct {
	FolderID string `json:"folder_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

type existenceResponse struct {
	Exists bool `json:"exists"`
}

// CheckFileExistence asks whether fileName already exists in folderID.
func (c *Client) CheckFileExistence(ctx context.Context, folderID, fileName string) (bool, error) {
	var resp existenceResponse
	req := existenceRequest{
		FolderID: folderID,
		FileName: fileName,
		FileType: constants.PlaceholderFileType,
	}
	if err := c.doJSON(ctx, "POST", "/filer/check_file_existence", req, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// Discovery returns the collaborator-app registry.
func (c *Client) Discovery(ctx context.Context) (models.CollabRegistry, error) {
	var registry models.CollabRegistry
	if err := c.doJSON(ctx, "GET", "/filer/discovery", nil, &registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Users returns the user directory.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.doJSON(ctx, "GET", "/filer/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
