package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/apiplane/internal/app"
)

type CountsOutput struct {
	Body []CountResponse
}

type SubscriptionAnalyticsInput struct {
	EnvScope
	APIID string `path:"apiId" doc:"API ID"`
	Field string `query:"field" default:"status" doc:"Group by: status, plan or application"`
}

type APIAnalyticsInput struct {
	EnvScope
	Field string `query:"field" default:"state" doc:"Group by: state, visibility or review"`
}

type AuditInput struct {
	EnvScope
	APIID  string `path:"apiId" doc:"API ID"`
	Limit  int    `query:"limit" default:"50" minimum:"0" doc:"Max results"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Pagination offset"`
}

type AuditOutput struct {
	Body []AuditResponse
}

func registerAnalytics(api huma.API, svc *app.AnalyticsService) {
	huma.Register(api, huma.Operation{
		OperationID: "api-subscription-analytics",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/analytics",
		Summary:     "Count the subscriptions of an API",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *SubscriptionAnalyticsInput) (*CountsOutput, error) {
		counts, err := svc.SubscriptionCounts(ctx, input.ec(), input.APIID, input.Field)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &CountsOutput{Body: mapSlice(counts, toCountResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "api-audit",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/audit",
		Summary:     "Read the audit trail of an API",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *AuditInput) (*AuditOutput, error) {
		events, err := svc.Audit(ctx, input.ec(), input.APIID, paging(input.Limit, input.Offset))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &AuditOutput{Body: mapSlice(events, toAuditResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "environment-api-analytics",
		Method:      http.MethodGet,
		Path:        Prefix + "/analytics",
		Summary:     "Count the APIs of the environment",
		Tags:        []string{"Analytics"},
	}, func(ctx context.Context, input *APIAnalyticsInput) (*CountsOutput, error) {
		counts, err := svc.APICounts(ctx, input.ec(), input.Field)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &CountsOutput{Body: mapSlice(counts, toCountResponse)}, nil
	})
}
