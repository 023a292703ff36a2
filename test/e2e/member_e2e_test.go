package e2e_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KinKeep/pkg/client"
)

func TestMemberLifecycle(t *testing.T) {
	requireEnv(t)
	suffix := randomSuffix()

	var parent client.Member
	parentID := createAndCleanup(t, func() string {
		resp := doPost(t, "/api/v1/members", map[string]string{
			"firstName": "Parent" + suffix, "lastName": "E2E", "gender": "female", "birthDate": "1950-02-02",
		})
		assertStatus(t, resp, http.StatusCreated)
		out := decodeEnvelope(t, resp, &parent)
		require.True(t, out.Success)
		return parent.ID
	})
	assert.NotZero(t, parent.CreatedAt)
	assert.Empty(t, parent.Memories)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	members := env.sdkClient.Members()

	child, err := members.Create(ctx, &client.MemberInput{
		FirstName: "Child" + suffix, LastName: "E2E", MotherID: parentID, MotherType: "foster",
	})
	require.NoError(t, err)
	assert.Equal(t, "unknown", child.Gender)

	rel, err := members.Relatives(ctx, parentID)
	require.NoError(t, err)
	require.Len(t, rel.Children, 1)
	assert.Equal(t, child.ID, rel.Children[0].ID)

	found, err := members.List(ctx, &client.ListOptions{Term: strings.ToLower("Child" + suffix)})
	require.NoError(t, err)
	require.Len(t, found.Members, 1)

	resp := doDelete(t, "/api/v1/members/"+parentID)
	assertStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	got, err := members.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, got.MotherID)

	require.NoError(t, members.Delete(ctx, child.ID))
	_, err = members.Get(ctx, child.ID)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}

func TestInvalidGenderFilter(t *testing.T) {
	requireEnv(t)
	resp := doGet(t, "/api/v1/members?gender=other")
	assertStatus(t, resp, http.StatusBadRequest)
	out := decodeEnvelope(t, resp, nil)
	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "MEM_005", out.Error.Code)
}

func TestExportDownload(t *testing.T) {
	requireEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exp, err := env.sdkClient.Stories().Export(ctx, "json")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(exp.Filename, ".json"))
	assert.Contains(t, string(exp.Data), `"members"`)
}

func TestReadiness(t *testing.T) {
	requireEnv(t)
	resp := doGet(t, "/readyz")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
