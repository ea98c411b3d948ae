package tibber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/angas/pricewatch-go/types"
)

const apiURL = "https://api.tibber.com/v1-beta/gql"

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse[T any] struct {
	Data struct {
		Viewer T `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string   `json:"message"`
		Path    []string `json:"path"`
	} `json:"errors,omitempty"`
}

// Tibber is a client for the Tibber GraphQL API. It implements
// types.PriceProvider; every failure is returned as a *types.FetchError so the
// coordinator can tell retryable problems from a bad token.
type Tibber struct {
	apiToken string
	url      string
	client   *http.Client
}

func New(apiToken string) *Tibber {
	return &Tibber{apiToken: apiToken, url: apiURL, client: &http.Client{}}
}

func doQuery[T any](ctx context.Context, t *Tibber, query string) (*queryResponse[T], error) {
	reqBody, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return nil, types.NewFetchError(types.FetchMalformed, err)
	}

	req, _ := http.NewRequestWithContext(ctx, "POST", t.url, bytes.NewBuffer(reqBody))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.apiToken))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return nil, types.NewFetchError(classifyTransport(err), err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, types.NewFetchError(types.FetchAuth, fmt.Errorf("got status %s", res.Status))
	case res.StatusCode != http.StatusOK:
		return nil, types.NewFetchError(types.FetchTransport, fmt.Errorf("got status %s", res.Status))
	}

	bytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, types.NewFetchError(types.FetchTransport, err)
	}

	resBody := new(queryResponse[T])
	if err = json.Unmarshal(bytes, resBody); err != nil {
		return nil, types.NewFetchError(types.FetchMalformed, err)
	}

	if resBody.Errors != nil {
		messages := make([]string, len(resBody.Errors))
		for i, err := range resBody.Errors {
			messages[i] = err.Message
		}
		msg := strings.Join(messages, "; ")
		kind := types.FetchTransport
		if strings.Contains(strings.ToLower(msg), "auth") {
			kind = types.FetchAuth
		}
		return nil, types.NewFetchError(kind, fmt.Errorf("graphql error: %s", msg))
	}

	return resBody, nil
}

func classifyTransport(err error) types.FetchErrorKind {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.FetchTimeout
	}
	return types.FetchTransport
}
