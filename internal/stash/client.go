package stash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/stashapp/stash/pkg/plugin/common"
)

// GraphQLURL returns the /graphql endpoint of the Stash server the plugin
// was launched by.
func GraphQLURL(conn common.StashServerConnection) (*url.URL, error) {
	scheme := conn.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := conn.Host
	if host == "" {
		host = "localhost"
	}

	u, err := url.Parse(scheme + "://" + host + ":" + strconv.Itoa(conn.Port) + "/graphql")
	if err != nil {
		return nil, fmt.Errorf("invalid stash server connection: %w", err)
	}
	return u, nil
}

// Connect creates a GraphQL client for the launching Stash server. The
// session cookie is carried in a jar so image downloads share it.
func Connect(conn common.StashServerConnection) (*graphql.Client, error) {
	u, err := GraphQLURL(conn)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if conn.SessionCookie != nil {
		jar.SetCookies(u, []*http.Cookie{conn.SessionCookie})
	}

	return NewClient(u.String(), &http.Client{Jar: jar}), nil
}

// NewClient creates a GraphQL client against an explicit endpoint.
func NewClient(endpoint string, doer graphql.Doer, options ...graphql.ClientOption) *graphql.Client {
	return graphql.NewClient(endpoint, doer, options...).WithRequestModifier(stripNulls)
}

// stripNulls drops null variables from JSON request bodies; Stash rejects
// explicit nulls on several filter inputs.
func stripNulls(req *http.Request) {
	if req.Method != http.MethodPost || req.Body == nil {
		return
	}
	if req.Header.Get("Content-Type") != "application/json" {
		return
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	restore := func(b []byte) {
		req.Body = io.NopCloser(bytes.NewReader(b))
		req.ContentLength = int64(len(b))
	}
	if err != nil {
		restore(body)
		return
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var payload interface{}
	if err := decoder.Decode(&payload); err != nil {
		restore(body)
		return
	}

	cleaned, err := json.Marshal(pruneNulls(payload))
	if err != nil {
		restore(body)
		return
	}
	restore(cleaned)
}

// pruneNulls removes null object members recursively. Array elements are
// kept so positional arguments stay aligned.
func pruneNulls(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, member := range val {
			if member == nil {
				continue
			}
			out[k] = pruneNulls(member)
		}
		return out
	case []interface{}:
		for i := range val {
			val[i] = pruneNulls(val[i])
		}
		return val
	}
	return v
}
