package rpa_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohits-web03/planrelay/internal/rpa"
	"github.com/rohits-web03/planrelay/internal/rpa/rpatest"
)

type staticAuth string

func (a staticAuth) Token(context.Context) (string, error)        { return string(a), nil }
func (a staticAuth) ForceRefresh(context.Context) (string, error) { return string(a), nil }

func TestAuthenticatorCachesToken(t *testing.T) {
	srv := rpatest.NewServer()
	defer srv.Close()

	auth := rpa.NewOAuthAuthenticator(srv.Credentials(), srv.Client())
	ctx := context.Background()

	tok, err := auth.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	tok, err = auth.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, srv.TokenRequests())

	tok, err = auth.ForceRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 2, srv.TokenRequests())
}

func TestAuthenticatorRejectedCredentials(t *testing.T) {
	srv := rpatest.NewServer()
	defer srv.Close()

	creds := srv.Credentials()
	creds.ClientSecret = "wrong"
	auth := rpa.NewOAuthAuthenticator(creds, srv.Client())

	_, err := auth.Token(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, srv.TokenRequests())
}

func TestClientSharesTokenAcrossCalls(t *testing.T) {
	srv := rpatest.NewServer()
	defer srv.Close()
	client := srv.NewClient()
	ctx := context.Background()

	folder, err := client.CreateFolder(ctx, "north")
	require.NoError(t, err)

	got, err := client.GetFolder(ctx, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, "north", got.Name)
	assert.Equal(t, 1, srv.TokenRequests())
}

func TestForbiddenUsesAuthDebugHeader(t *testing.T) {
	srv := rpatest.NewServer()
	defer srv.Close()
	srv.Forbid("partner is not allowed to read this plan")
	client := srv.NewClient()

	_, err := client.GetPlan(context.Background(), "plan-1")
	var apiErr *rpa.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "partner is not allowed to read this plan", apiErr.Message)
	assert.Contains(t, err.Error(), "partner is not allowed")
	assert.Equal(t, 1, srv.TokenRequests(), "403 is not retried with a fresh token")
}

func TestHTTPErrorKeepsStatusAndBody(t *testing.T) {
	srv := rpatest.NewServer()
	defer srv.Close()
	client := srv.NewClient()

	_, err := client.GetPlan(context.Background(), "missing")
	var apiErr *rpa.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Empty(t, apiErr.Message)
	assert.Contains(t, string(apiErr.Body), "unknown object missing")
}

func TestTransportErrorReturnedUnchanged(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	base := dead.URL
	dead.Close()

	client := rpa.NewClient(rpa.Config{BaseURL: base, PartnerID: "p"}, staticAuth("tok-x"))
	_, err := client.GetPlan(context.Background(), "plan-1")
	require.Error(t, err)

	var urlErr *url.Error
	assert.True(t, errors.As(err, &urlErr))
	var apiErr *rpa.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestPlanLifecycleCalls(t *testing.T) {
	srv := rpatest.NewServer()
	defer srv.Close()
	client := srv.NewClient()
	ctx := context.Background()

	folder, err := client.CreateFolder(ctx, "f")
	require.NoError(t, err)
	dsm := srv.AddFile("dsm.tif", rpa.FileRoleDSM, []byte("dsm"))
	boundary := srv.AddFile("b.kml", rpa.FileRoleBoundary, []byte("b"))
	sites := srv.AddFile("s.csv", rpa.FileRoleSites, []byte("s"))

	id, err := client.CreatePlan(ctx, rpa.CreatePlanRequest{
		FolderID: folder.ID, Name: "p", DSMFileID: dsm, BoundaryFileID: boundary, SitesFileID: sites,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := client.LaunchPlan(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := client.GetPlan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rpa.PlanStatusRunning, p.Status)

	ok, err = client.CancelPlan(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	p, err = client.GetPlan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rpa.PlanStatusKilled, p.Status)
}
