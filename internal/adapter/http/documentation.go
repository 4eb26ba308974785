package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/conditional"

	"github.com/neomorfeo/apiplane/internal/app"
)

// --- Pages ---

type ListPagesInput struct {
	EnvScope
	APIID string `path:"apiId" doc:"API ID"`
}

type ListPagesOutput struct {
	Body []PageResponse
}

type CreatePageInput struct {
	EnvScope
	APIID string `path:"apiId" doc:"API ID"`
	Body  app.PageInput
}

type PageOutput struct {
	Versioned
	Body PageResponse
}

type GetPageInput struct {
	EnvScope
	conditional.Params
	APIID  string `path:"apiId" doc:"API ID"`
	PageID string `path:"pageId" doc:"Page ID"`
}

type UpdatePageInput struct {
	EnvScope
	Precondition
	APIID  string `path:"apiId" doc:"API ID"`
	PageID string `path:"pageId" doc:"Page ID"`
	Body   app.PageInput
}

type DeletePageInput struct {
	EnvScope
	Precondition
	APIID  string `path:"apiId" doc:"API ID"`
	PageID string `path:"pageId" doc:"Page ID"`
}

func registerPages(api huma.API, svc *app.PageService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pages",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/pages",
		Summary:     "List the documentation pages of an API",
		Tags:        []string{"Documentation"},
	}, func(ctx context.Context, input *ListPagesInput) (*ListPagesOutput, error) {
		pages, err := svc.List(ctx, input.ec(), input.APIID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListPagesOutput{Body: mapSlice(pages, toPageResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-page",
		Method:        http.MethodPost,
		Path:          Prefix + "/apis/{apiId}/pages",
		Summary:       "Create a documentation page",
		Tags:          []string{"Documentation"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreatePageInput) (*PageOutput, error) {
		page, err := svc.Create(ctx, input.ec(), input.APIID, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PageOutput{Versioned: versioned(page), Body: toPageResponse(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-page",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/pages/{pageId}",
		Summary:     "Get a documentation page",
		Tags:        []string{"Documentation"},
	}, func(ctx context.Context, input *GetPageInput) (*PageOutput, error) {
		page, err := svc.Get(ctx, input.ec(), input.APIID, input.PageID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if err := notModified(&input.Params, page); err != nil {
			return nil, err
		}
		return &PageOutput{Versioned: versioned(page), Body: toPageResponse(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-page",
		Method:      http.MethodPut,
		Path:        Prefix + "/apis/{apiId}/pages/{pageId}",
		Summary:     "Update a documentation page",
		Tags:        []string{"Documentation"},
	}, func(ctx context.Context, input *UpdatePageInput) (*PageOutput, error) {
		page, err := svc.Update(ctx, input.ec(), input.APIID, input.PageID, input.IfMatch, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PageOutput{Versioned: versioned(page), Body: toPageResponse(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-page",
		Method:        http.MethodDelete,
		Path:          Prefix + "/apis/{apiId}/pages/{pageId}",
		Summary:       "Delete a documentation page",
		Tags:          []string{"Documentation"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeletePageInput) (*struct{}, error) {
		if err := svc.Delete(ctx, input.ec(), input.APIID, input.PageID, input.IfMatch); err != nil {
			return nil, toHumaError(ctx, err)
		}
		return nil, nil
	})
}

// --- Alerts ---

type ListAlertsInput struct {
	EnvScope
	APIID string `path:"apiId" doc:"API ID"`
}

type ListAlertsOutput struct {
	Body []AlertResponse
}

type CreateAlertInput struct {
	EnvScope
	APIID string `path:"apiId" doc:"API ID"`
	Body  app.AlertInput
}

type AlertOutput struct {
	Versioned
	Body AlertResponse
}

type GetAlertInput struct {
	EnvScope
	conditional.Params
	APIID   string `path:"apiId" doc:"API ID"`
	AlertID string `path:"alertId" doc:"Alert trigger ID"`
}

type UpdateAlertInput struct {
	EnvScope
	Precondition
	APIID   string `path:"apiId" doc:"API ID"`
	AlertID string `path:"alertId" doc:"Alert trigger ID"`
	Body    app.AlertInput
}

type DeleteAlertInput struct {
	EnvScope
	Precondition
	APIID   string `path:"apiId" doc:"API ID"`
	AlertID string `path:"alertId" doc:"Alert trigger ID"`
}

func registerAlerts(api huma.API, svc *app.AlertService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/alerts",
		Summary:     "List the alert triggers of an API",
		Tags:        []string{"Alerts"},
	}, func(ctx context.Context, input *ListAlertsInput) (*ListAlertsOutput, error) {
		alerts, err := svc.List(ctx, input.ec(), input.APIID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListAlertsOutput{Body: mapSlice(alerts, toAlertResponse)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-alert",
		Method:        http.MethodPost,
		Path:          Prefix + "/apis/{apiId}/alerts",
		Summary:       "Create an alert trigger",
		Tags:          []string{"Alerts"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateAlertInput) (*AlertOutput, error) {
		alert, err := svc.Create(ctx, input.ec(), input.APIID, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &AlertOutput{Versioned: versioned(alert), Body: toAlertResponse(alert)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-alert",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/alerts/{alertId}",
		Summary:     "Get an alert trigger",
		Tags:        []string{"Alerts"},
	}, func(ctx context.Context, input *GetAlertInput) (*AlertOutput, error) {
		alert, err := svc.Get(ctx, input.ec(), input.APIID, input.AlertID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		if err := notModified(&input.Params, alert); err != nil {
			return nil, err
		}
		return &AlertOutput{Versioned: versioned(alert), Body: toAlertResponse(alert)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-alert",
		Method:      http.MethodPut,
		Path:        Prefix + "/apis/{apiId}/alerts/{alertId}",
		Summary:     "Update an alert trigger",
		Tags:        []string{"Alerts"},
	}, func(ctx context.Context, input *UpdateAlertInput) (*AlertOutput, error) {
		alert, err := svc.Update(ctx, input.ec(), input.APIID, input.AlertID, input.IfMatch, input.Body)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &AlertOutput{Versioned: versioned(alert), Body: toAlertResponse(alert)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-alert",
		Method:        http.MethodDelete,
		Path:          Prefix + "/apis/{apiId}/alerts/{alertId}",
		Summary:       "Delete an alert trigger",
		Tags:          []string{"Alerts"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteAlertInput) (*struct{}, error) {
		if err := svc.Delete(ctx, input.ec(), input.APIID, input.AlertID, input.IfMatch); err != nil {
			return nil, toHumaError(ctx, err)
		}
		return nil, nil
	})
}
