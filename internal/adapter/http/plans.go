package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/conditional"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

type ListPlansInput struct {
	EnvScope
	APIID  string `path:"apiId" doc:"API ID"`
	Status string `query:"status" doc:"Filter by status (STAGING, PUBLISHED, DEPRECATED, CLOSED)"`
}

type ListPlansOutput struct {
	Body []PlanResponse
}

type CreatePlanInput struct {
	EnvScope
	APIID string `path:"apiId" doc:"API ID"`
	Body  app.NewPlanInput
}

type PlanOutput struct {
	Versioned
	Body PlanResponse
}

type GetPlanInput struct {
	EnvScope
	conditional.Params
	APIID  string `path:"apiId" doc:"API ID"`
	PlanID string `path:"planId" doc:"Plan ID"`
}

type UpdatePlanInput struct {
	EnvScope
	Precondition
	APIID  string `path:"apiId" doc:"API ID"`
	PlanID string `path:"planId" doc:"Plan ID"`
	Body   app.PlanUpdate
}

type PlanActionInput struct {
	EnvScope
	Precondition
	APIID  string `path:"apiId" doc:"API ID"`
	PlanID string `path:"planId" doc:"Plan ID"`
}

func registerPlans(api huma.API, svc *app.PlanService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/plans",
		Summary:     "List the plans of an API",
		Tags:        []string{"Plans"},
	}, func(ctx context.Context, input *ListPlansInput) (*ListPlansOutput, error) {
		var status *domain.PlanStatus
		if input.Status != "" {
			s := domain.PlanStatus(input.Status)
			status = &s
		}

		plans, err := svc.List(ctx, input.ec(), input.APIID, status)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListPlansOutput{Body: mapSlice(plans, toPlanResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-plan",
		Method:        http.MethodPost,
		Path:          Prefix + "/apis/{apiId}/plans",
		Summary:       "Create a plan in STAGING",
		Tags:          []string{"Plans"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreatePlanInput) (*PlanOutput, error) {
		plan, err := svc.Create(ctx, input.ec(), input.APIID, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PlanOutput{Versioned: versioned(plan), Body: toPlanResponse(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/plans/{planId}",
		Summary:     "Get a plan",
		Tags:        []string{"Plans"},
	}, func(ctx context.Context, input *GetPlanInput) (*PlanOutput, error) {
		plan, err := svc.Get(ctx, input.ec(), input.APIID, input.PlanID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if err := notModified(&input.Params, plan); err != nil {
			return nil, err
		}
		return &PlanOutput{Versioned: versioned(plan), Body: toPlanResponse(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-plan",
		Method:      http.MethodPut,
		Path:        Prefix + "/apis/{apiId}/plans/{planId}",
		Summary:     "Update a plan",
		Tags:        []string{"Plans"},
	}, func(ctx context.Context, input *UpdatePlanInput) (*PlanOutput, error) {
		plan, err := svc.Update(ctx, input.ec(), input.APIID, input.PlanID, input.IfMatch, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PlanOutput{Versioned: versioned(plan), Body: toPlanResponse(plan)}, nil
	})

	actions := []struct {
		path    string
		summary string
		run     func(context.Context, domain.ExecutionContext, string, string, string) (domain.Plan, error)
	}{
		{"_publish", "Publish a plan", svc.Publish},
		{"_deprecate", "Deprecate a plan", svc.Deprecate},
		{"_close", "Close a plan and its subscriptions", svc.Close},
	}
	for _, a := range actions {
		huma.Register(api, huma.Operation{
			OperationID: "plan" + a.path,
			Method:      http.MethodPost,
			Path:        Prefix + "/apis/{apiId}/plans/{planId}/" + a.path,
			Summary:     a.summary,
			Tags:        []string{"Plans"},
		}, func(ctx context.Context, input *PlanActionInput) (*PlanOutput, error) {
			plan, err := a.run(ctx, input.ec(), input.APIID, input.PlanID, input.IfMatch)
			if err != nil {
				return nil, toHumaError(ctx, err)
			}
			return &PlanOutput{Versioned: versioned(plan), Body: toPlanResponse(plan)}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID:   "delete-plan",
		Method:        http.MethodDelete,
		Path:          Prefix + "/apis/{apiId}/plans/{planId}",
		Summary:       "Delete a staging or closed plan",
		Tags:          []string{"Plans"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *PlanActionInput) (*struct{}, error) {
		if err := svc.Delete(ctx, input.ec(), input.APIID, input.PlanID, input.IfMatch); err != nil {
			return nil, toHumaError(ctx, err)
		}
		return nil, nil
	})
}
