package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/conditional"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

type ListApplicationsInput struct {
	EnvScope
	Status string `query:"status" doc:"Filter by status (ACTIVE, ARCHIVED)"`
	Limit  int    `query:"limit" default:"50" minimum:"0" doc:"Max results"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListApplicationsOutput struct {
	Body []ApplicationResponse
}

type CreateApplicationInput struct {
	EnvScope
	Body app.NewApplicationInput
}

type ApplicationOutput struct {
	Versioned
	Body ApplicationResponse
}

type GetApplicationInput struct {
	EnvScope
	conditional.Params
	AppID string `path:"appId" doc:"Application ID"`
}

type UpdateApplicationInput struct {
	EnvScope
	Precondition
	AppID string `path:"appId" doc:"Application ID"`
	Body  app.ApplicationUpdate
}

type DeleteApplicationInput struct {
	EnvScope
	Precondition
	AppID string `path:"appId" doc:"Application ID"`
}

func registerApplications(api huma.API, svc *app.ApplicationService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        Prefix + "/applications",
		Summary:     "List the applications visible to the caller",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *ListApplicationsInput) (*ListApplicationsOutput, error) {
		q := app.ApplicationListQuery{Paging: paging(input.Limit, input.Offset)}
		if input.Status != "" {
			status := domain.ApplicationStatus(input.Status)
			q.Status = &status
		}

		apps, err := svc.List(ctx, input.ec(), q)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListApplicationsOutput{Body: mapSlice(apps, toApplicationResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-application",
		Method:        http.MethodPost,
		Path:          Prefix + "/applications",
		Summary:       "Create an application",
		Tags:          []string{"Applications"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateApplicationInput) (*ApplicationOutput, error) {
		created, err := svc.Create(ctx, input.ec(), input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ApplicationOutput{Versioned: versioned(created), Body: toApplicationResponse(created)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        Prefix + "/applications/{appId}",
		Summary:     "Get an application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *GetApplicationInput) (*ApplicationOutput, error) {
		found, err := svc.Get(ctx, input.ec(), input.AppID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if err := notModified(&input.Params, found); err != nil {
			return nil, err
		}
		return &ApplicationOutput{Versioned: versioned(found), Body: toApplicationResponse(found)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-application",
		Method:      http.MethodPut,
		Path:        Prefix + "/applications/{appId}",
		Summary:     "Update an application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *UpdateApplicationInput) (*ApplicationOutput, error) {
		updated, err := svc.Update(ctx, input.ec(), input.AppID, input.IfMatch, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ApplicationOutput{Versioned: versioned(updated), Body: toApplicationResponse(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-application",
		Method:        http.MethodDelete,
		Path:          Prefix + "/applications/{appId}",
		Summary:       "Archive an application and close its subscriptions",
		Tags:          []string{"Applications"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteApplicationInput) (*VersionedOutput, error) {
		archived, err := svc.Delete(ctx, input.ec(), input.AppID, input.IfMatch)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &VersionedOutput{Versioned: versioned(archived)}, nil
	})
}
