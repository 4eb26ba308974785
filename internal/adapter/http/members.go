package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/apiplane/internal/app"
	"github.com/neomorfeo/apiplane/internal/domain"
)

type ListMembersOutput struct {
	Body []MemberResponse
}

type MemberOutput struct {
	Body MemberResponse
}

type APIMembersInput struct {
	EnvScope
	APIID string `path:"apiId" doc:"API ID"`
}

type SaveAPIMemberInput struct {
	APIMembersInput
	Body app.MemberInput
}

type RemoveAPIMemberInput struct {
	APIMembersInput
	MemberID string `path:"memberId" doc:"Member principal"`
}

type TransferAPIOwnershipInput struct {
	APIMembersInput
	Body app.TransferInput
}

type ApplicationMembersInput struct {
	EnvScope
	AppID string `path:"appId" doc:"Application ID"`
}

type SaveApplicationMemberInput struct {
	ApplicationMembersInput
	Body app.MemberInput
}

type RemoveApplicationMemberInput struct {
	ApplicationMembersInput
	MemberID string `path:"memberId" doc:"Member principal"`
}

type TransferApplicationOwnershipInput struct {
	ApplicationMembersInput
	Body app.TransferInput
}

func (i *APIMembersInput) ref() domain.Reference {
	return domain.Reference{Type: domain.ReferenceAPI, ID: i.APIID}
}

func (i *ApplicationMembersInput) ref() domain.Reference {
	return domain.Reference{Type: domain.ReferenceApplication, ID: i.AppID}
}

func registerMembers(api huma.API, svc *app.MemberService) {
	list := func(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference) (*ListMembersOutput, error) {
		members, err := svc.List(ctx, ec, ref)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ListMembersOutput{Body: mapSlice(members, toMemberResponse)}, nil
	}
	save := func(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, in app.MemberInput) (*MemberOutput, error) {
		m, err := svc.Save(ctx, ec, ref, in)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &MemberOutput{Body: toMemberResponse(m)}, nil
	}
	remove := func(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, memberID string) (*struct{}, error) {
		if err := svc.Remove(ctx, ec, ref, memberID); err != nil {
			return nil, toHumaError(ctx, err)
		}
		return nil, nil
	}
	transfer := func(ctx context.Context, ec domain.ExecutionContext, ref domain.Reference, in app.TransferInput) (*struct{}, error) {
		if err := svc.TransferOwnership(ctx, ec, ref, in); err != nil {
			return nil, toHumaError(ctx, err)
		}
		return nil, nil
	}

	// --- API members ---

	huma.Register(api, huma.Operation{
		OperationID: "list-api-members",
		Method:      http.MethodGet,
		Path:        Prefix + "/apis/{apiId}/members",
		Summary:     "List the members of an API",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *APIMembersInput) (*ListMembersOutput, error) {
		return list(ctx, input.ec(), input.ref())
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-api-member",
		Method:      http.MethodPost,
		Path:        Prefix + "/apis/{apiId}/members",
		Summary:     "Add a member to an API or change their role",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *SaveAPIMemberInput) (*MemberOutput, error) {
		return save(ctx, input.ec(), input.ref(), input.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-api-member",
		Method:        http.MethodDelete,
		Path:          Prefix + "/apis/{apiId}/members/{memberId}",
		Summary:       "Remove a member from an API",
		Tags:          []string{"Members"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *RemoveAPIMemberInput) (*struct{}, error) {
		return remove(ctx, input.ec(), input.ref(), input.MemberID)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "transfer-api-ownership",
		Method:        http.MethodPost,
		Path:          Prefix + "/apis/{apiId}/members/_transfer_ownership",
		Summary:       "Transfer the primary ownership of an API",
		Tags:          []string{"Members"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *TransferAPIOwnershipInput) (*struct{}, error) {
		return transfer(ctx, input.ec(), input.ref(), input.Body)
	})

	// --- Application members ---

	huma.Register(api, huma.Operation{
		OperationID: "list-application-members",
		Method:      http.MethodGet,
		Path:        Prefix + "/applications/{appId}/members",
		Summary:     "List the members of an application",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *ApplicationMembersInput) (*ListMembersOutput, error) {
		return list(ctx, input.ec(), input.ref())
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-application-member",
		Method:      http.MethodPost,
		Path:        Prefix + "/applications/{appId}/members",
		Summary:     "Add a member to an application or change their role",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *SaveApplicationMemberInput) (*MemberOutput, error) {
		return save(ctx, input.ec(), input.ref(), input.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-application-member",
		Method:        http.MethodDelete,
		Path:          Prefix + "/applications/{appId}/members/{memberId}",
		Summary:       "Remove a member from an application",
		Tags:          []string{"Members"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *RemoveApplicationMemberInput) (*struct{}, error) {
		return remove(ctx, input.ec(), input.ref(), input.MemberID)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "transfer-application-ownership",
		Method:        http.MethodPost,
		Path:          Prefix + "/applications/{appId}/members/_transfer_ownership",
		Summary:       "Transfer the primary ownership of an application",
		Tags:          []string{"Members"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *TransferApplicationOwnershipInput) (*struct{}, error) {
		return transfer(ctx, input.ec(), input.ref(), input.Body)
	})
}
