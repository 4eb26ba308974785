package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/conditional"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

type ListSubscriptionsOutput struct {
	Body []SubscriptionResponse
}

type SubscriptionOutput struct {
	Versioned
	Body SubscriptionResponse
}

// --- API side ---

type ListAPISubscriptionsInput struct {
	EnvScope
	APIID  string   `path:"apiId" doc:"API ID"`
	Status []string `query:"status" doc:"Filter by status, comma separated"`
	Limit  int      `query:"limit" default:"50" minimum:"0" doc:"Max results"`
	Offset int      `query:"offset" default:"0" minimum:"0" doc:"Pagination offset"`
}

type GetAPISubscriptionInput struct {
	EnvScope
	conditional.Params
	APIID string `path:"apiId" doc:"API ID"`
	SubID string `path:"subId" doc:"Subscription ID"`
}

type UpdateSubscriptionInput struct {
	EnvScope
	Precondition
	APIID string `path:"apiId" doc:"API ID"`
	SubID string `path:"subId" doc:"Subscription ID"`
	Body  app.SubscriptionUpdate
}

type ProcessSubscriptionInput struct {
	EnvScope
	Precondition
	APIID string `path:"apiId" doc:"API ID"`
	SubID string `path:"subId" doc:"Subscription ID"`
	Body  app.ProcessInput
}

type SubscriptionStatusInput struct {
	EnvScope
	Precondition
	APIID  string `path:"apiId" doc:"API ID"`
	SubID  string `path:"subId" doc:"Subscription ID"`
	Status string `query:"status" required:"true" doc:"PAUSED, RESUMED or CLOSED"`
}

// --- Application side ---

type SubscribeInput struct {
	EnvScope
	AppID string `path:"appId" doc:"Application ID"`
	Body  app.SubscribeInput
}

type ListApplicationSubscriptionsInput struct {
	EnvScope
	AppID  string   `path:"appId" doc:"Application ID"`
	Status []string `query:"status" doc:"Filter by status, comma separated"`
	Limit  int      `query:"limit" default:"50" minimum:"0" doc:"Max results"`
	Offset int      `query:"offset" default:"0" minimum:"0" doc:"Pagination offset"`
}

type GetApplicationSubscriptionInput struct {
	EnvScope
	conditional.Params
	AppID string `path:"appId" doc:"Application ID"`
	SubID string `path:"subId" doc:"Subscription ID"`
}

type UnsubscribeInput struct {
	EnvScope
	Precondition
	AppID string `path:"appId" doc:"Application ID"`
	SubID string `path:"subId" doc:"Subscription ID"`
}

func subscriptionQuery(statuses []string, limit, offset int) app.SubscriptionListQuery {
	q := app.SubscriptionListQuery{Paging: paging(limit, offset)}
	for _, s := range statuses {
		q.Statuses = append(q.Statuses, domain.SubscriptionStatus(s))
	}
	return q
}

func registerSubscriptions(api huma.API, svc *app.SubscriptionService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-api-subscriptions",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/subscriptions",
		Summary:     "List the subscriptions of an API",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *ListAPISubscriptionsInput) (*ListSubscriptionsOutput, error) {
		subs, err := svc.ListForAPI(ctx, input.ec(), input.APIID, subscriptionQuery(input.Status, input.Limit, input.Offset))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListSubscriptionsOutput{Body: mapSlice(subs, toSubscriptionResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-api-subscription",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/subscriptions/{subId}",
		Summary:     "Get a subscription of an API",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *GetAPISubscriptionInput) (*SubscriptionOutput, error) {
		sub, err := svc.GetForAPI(ctx, input.ec(), input.APIID, input.SubID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if err := notModified(&input.Params, sub); err != nil {
			return nil, err
		}
		return &SubscriptionOutput{Versioned: versioned(sub), Body: toSubscriptionResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-api-subscription",
		Method:      http.MethodPut,
		Path:        Prefix + "/apis/{apiId}/subscriptions/{subId}",
		Summary:     "Update the configuration of a subscription",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *UpdateSubscriptionInput) (*SubscriptionOutput, error) {
		sub, err := svc.UpdateConfiguration(ctx, input.ec(), input.APIID, input.SubID, input.IfMatch, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &SubscriptionOutput{Versioned: versioned(sub), Body: toSubscriptionResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-api-subscription",
		Method:      http.MethodPost,
		Path:        Prefix + "/apis/{apiId}/subscriptions/{subId}/_process",
		Summary:     "Accept or reject a pending subscription",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *ProcessSubscriptionInput) (*SubscriptionOutput, error) {
		sub, err := svc.Process(ctx, input.ec(), input.APIID, input.SubID, input.IfMatch, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &SubscriptionOutput{Versioned: versioned(sub), Body: toSubscriptionResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-api-subscription-status",
		Method:      http.MethodPost,
		Path:        Prefix + "/apis/{apiId}/subscriptions/{subId}/status",
		Summary:     "Pause, resume or close a subscription",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *SubscriptionStatusInput) (*SubscriptionOutput, error) {
		sub, err := svc.ChangeStatus(ctx, input.ec(), input.APIID, input.SubID, input.IfMatch, input.Status)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &SubscriptionOutput{Versioned: versioned(sub), Body: toSubscriptionResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "subscribe",
		Method:        http.MethodPost,
		Path:          Prefix + "/applications/{appId}/subscriptions",
		Summary:       "Subscribe an application to a plan",
		Tags:          []string{"Subscriptions"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *SubscribeInput) (*SubscriptionOutput, error) {
		sub, err := svc.Subscribe(ctx, input.ec(), input.AppID, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &SubscriptionOutput{Versioned: versioned(sub), Body: toSubscriptionResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-application-subscriptions",
		Method:      http.MethodGet,
		Path:        Prefix + "/applications/{appId}/subscriptions",
		Summary:     "List the subscriptions of an application",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *ListApplicationSubscriptionsInput) (*ListSubscriptionsOutput, error) {
		subs, err := svc.ListForApplication(ctx, input.ec(), input.AppID, subscriptionQuery(input.Status, input.Limit, input.Offset))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListSubscriptionsOutput{Body: mapSlice(subs, toSubscriptionResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application-subscription",
		Method:      http.MethodGet,
		Path:        Prefix + "/applications/{appId}/subscriptions/{subId}",
		Summary:     "Get a subscription of an application",
		Tags:        []string{"Subscriptions"},
	}, func(ctx context.Context, input *GetApplicationSubscriptionInput) (*SubscriptionOutput, error) {
		sub, err := svc.GetForApplication(ctx, input.ec(), input.AppID, input.SubID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if err := notModified(&input.Params, sub); err != nil {
			return nil, err
		}
		return &SubscriptionOutput{Versioned: versioned(sub), Body: toSubscriptionResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "unsubscribe",
		Method:        http.MethodDelete,
		Path:          Prefix + "/applications/{appId}/subscriptions/{subId}",
		Summary:       "Close a subscription of an application",
		Tags:          []string{"Subscriptions"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *UnsubscribeInput) (*VersionedOutput, error) {
		sub, err := svc.Unsubscribe(ctx, input.ec(), input.AppID, input.SubID, input.IfMatch)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &VersionedOutput{Versioned: versioned(sub)}, nil
	})
}
