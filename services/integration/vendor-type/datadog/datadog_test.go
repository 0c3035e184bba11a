package datadog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stackpilot/stackpilot/services/integration/vendor-type/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersPage(offset, count int) usersResponse {
	var page usersResponse
	for i := 0; i < count; i++ {
		var u ddUser
		u.ID = fmt.Sprintf("user-%d", offset+i)
		u.Attributes.Email = fmt.Sprintf("user-%d@co.com", offset+i)
		u.Attributes.Name = fmt.Sprintf("User %d", offset+i)
		page.Data = append(page.Data, u)
	}
	return page
}

// The users endpoint does not always send meta.page.total_count, so pagination
// stops on a short page rather than on the advertised total.
func TestFetchUsersPaginatesWithoutTotalCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/roles":
			_ = json.NewEncoder(w).Encode(rolesResponse{})
		case "/api/v2/users":
			page := 0
			fmt.Sscanf(r.URL.Query().Get("page[number]"), "%d", &page)
			switch page {
			case 0:
				_ = json.NewEncoder(w).Encode(usersPage(0, pageSize))
			case 1:
				_ = json.NewEncoder(w).Encode(usersPage(pageSize, 2))
			default:
				t.Errorf("unexpected page number %d", page)
				_ = json.NewEncoder(w).Encode(usersResponse{})
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	vendor := &DatadogVendor{}
	users, err := vendor.FetchUsers(context.Background(), interfaces.Access{
		CompanyID: "acme",
		Fields: map[string]string{
			"apiKey": "k",
			"appKey": "a",
			"site":   server.URL,
		},
	})
	require.NoError(t, err)

	assert.Len(t, users, pageSize+2)
	assert.Equal(t, "user-0", users[0].ExternalID)
	assert.Equal(t, fmt.Sprintf("user-%d", pageSize+1), users[len(users)-1].ExternalID)
}

func TestBaseURLDefaultsAndOverrides(t *testing.T) {
	assert.Equal(t, "https://api.datadoghq.com", baseURL(map[string]string{}))
	assert.Equal(t, "https://api.datadoghq.eu", baseURL(map[string]string{"site": "datadoghq.eu"}))
	assert.Equal(t, "http://127.0.0.1:9999", baseURL(map[string]string{"site": "http://127.0.0.1:9999"}))
}
