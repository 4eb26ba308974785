package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/conditional"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

// --- List APIs ---

type ListAPIsInput struct {
	EnvScope
	State  string `query:"state" doc:"Filter by state (INITIALIZED, STARTED, STOPPED, ARCHIVED)"`
	Limit  int    `query:"limit" default:"50" minimum:"0" doc:"Max results"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListAPIsOutput struct {
	Body []APIResponse
}

// --- Create API ---

type CreateAPIInput struct {
	EnvScope
	Body app.NewAPIInput
}

type APIOutput struct {
	Versioned
	Body APIResponse
}

// --- Get API ---

type GetAPIInput struct {
	EnvScope
	conditional.Params
	APIID string `path:"apiId" doc:"API ID"`
}

// --- Update API ---

type UpdateAPIInput struct {
	EnvScope
	Precondition
	APIID string `path:"apiId" doc:"API ID"`
	Body  app.APIUpdate
}

// --- Lifecycle ---

type APIActionInput struct {
	EnvScope
	Precondition
	APIID  string `path:"apiId" doc:"API ID"`
	Action string `query:"action" required:"true" doc:"Lifecycle action: START or STOP"`
}

type VersionedOutput struct {
	Versioned
}

type APIReviewInput struct {
	EnvScope
	Precondition
	APIID string `path:"apiId" doc:"API ID"`
}

type DeleteAPIInput struct {
	EnvScope
	Precondition
	APIID string `path:"apiId" doc:"API ID"`
}

func registerAPIs(api huma.API, svc *app.APIService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-apis",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis",
		Summary:     "List the APIs visible to the caller",
		Tags:        []string{"APIs"},
	}, func(ctx context.Context, input *ListAPIsInput) (*ListAPIsOutput, error) {
		q := app.APIListQuery{Paging: paging(input.Limit, input.Offset)}
		if input.State != "" {
			state := domain.APIState(input.State)
			q.State = &state
		}

		apis, err := svc.List(ctx, input.ec(), q)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListAPIsOutput{Body: mapSlice(apis, toAPIResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api",
		Method:        http.MethodPost,
		Path:          Prefix + "/apis",
		Summary:       "Create an API",
		Tags:          []string{"APIs"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateAPIInput) (*APIOutput, error) {
		created, err := svc.Create(ctx, input.ec(), input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &APIOutput{Versioned: versioned(created), Body: toAPIResponse(created)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-api",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}",
		Summary:     "Get an API",
		Tags:        []string{"APIs"},
	}, func(ctx context.Context, input *GetAPIInput) (*APIOutput, error) {
		found, err := svc.Get(ctx, input.ec(), input.APIID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if err := notModified(&input.Params, found); err != nil {
			return nil, err
		}
		return &APIOutput{Versioned: versioned(found), Body: toAPIResponse(found)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-api",
		Method:      http.MethodPut,
		Path:        Prefix + "/apis/{apiId}",
		Summary:     "Update an API",
		Tags:        []string{"APIs"},
	}, func(ctx context.Context, input *UpdateAPIInput) (*APIOutput, error) {
		updated, err := svc.Update(ctx, input.ec(), input.APIID, input.IfMatch, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &APIOutput{Versioned: versioned(updated), Body: toAPIResponse(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "api-lifecycle",
		Method:        http.MethodPost,
		Path:          Prefix + "/apis/{apiId}",
		Summary:       "Start or stop an API",
		Tags:          []string{"APIs"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *APIActionInput) (*VersionedOutput, error) {
		moved, err := svc.Lifecycle(ctx, input.ec(), input.APIID, input.IfMatch, domain.Action(input.Action))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &VersionedOutput{Versioned: versioned(moved)}, nil
	})

	reviews := []struct {
		path    string
		action  domain.Action
		summary string
	}{
		{"_ask", domain.ActionAskForReview, "Ask for a review"},
		{"_accept", domain.ActionAcceptReview, "Accept the review"},
		{"_reject", domain.ActionRejectReview, "Reject the review"},
	}
	for _, r := range reviews {
		huma.Register(api, huma.Operation{
			OperationID: "api-review" + r.path,
			Method:      http.MethodPost,
			Path:        Prefix + "/apis/{apiId}/reviews/" + r.path,
			Summary:     r.summary,
			Tags:        []string{"APIs"},
		}, func(ctx context.Context, input *APIReviewInput) (*APIOutput, error) {
			reviewed, err := svc.Review(ctx, input.ec(), input.APIID, input.IfMatch, r.action)
			if err != nil {
				return nil, toHumaError(ctx, err)
			}
			return &APIOutput{Versioned: versioned(reviewed), Body: toAPIResponse(reviewed)}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api",
		Method:        http.MethodDelete,
		Path:          Prefix + "/apis/{apiId}",
		Summary:       "Archive an API and close its plans and subscriptions",
		Tags:          []string{"APIs"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteAPIInput) (*VersionedOutput, error) {
		archived, err := svc.Delete(ctx, input.ec(), input.APIID, input.IfMatch)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &VersionedOutput{Versioned: versioned(archived)}, nil
	})
}
