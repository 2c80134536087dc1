package service

import (
	"context"
	"errors"
	"strings"

	"saccoguard/internal/model"
	"saccoguard/internal/repository"
	"saccoguard/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidMemberStatus = errors.New("invalid member status")

type MemberService struct {
	memberRepo *repository.MemberRepository
	ids        *idgen.Snowflake
}

func NewMemberService(db *gorm.DB, ids *idgen.Snowflake) *MemberService {
	return &MemberService{
		memberRepo: repository.NewMemberRepository(db),
		ids:        ids,
	}
}

type CreateMemberRequest struct {
	FullName   string
	Phone      string
	NationalID string
}

// CreateMember 开户，余额从 0 开始，首笔存款走交易接口
func (s *MemberService) CreateMember(ctx context.Context, req *CreateMemberRequest) (*model.Member, error) {
	member := &model.Member{
		MemberNo:    s.ids.MemberNo(),
		FullName:    strings.TrimSpace(req.FullName),
		Phone:       strings.TrimSpace(req.Phone),
		NationalID:  strings.TrimSpace(req.NationalID),
		Balance:     decimal.Zero,
		LoanBalance: decimal.Zero,
		Status:      model.MemberStatusActive,
	}
	if err := s.memberRepo.Create(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *MemberService) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	return s.memberRepo.GetByID(ctx, id)
}

func (s *MemberService) ListMembers(ctx context.Context, filter repository.MemberFilter, page, pageSize int) ([]*model.Member, int64, error) {
	return s.memberRepo.List(ctx, filter, page, pageSize)
}

// UpdateStatus 冻结或恢复社员，冻结后不能再发起交易
func (s *MemberService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Member, error) {
	if status != model.MemberStatusActive && status != model.MemberStatusSuspended {
		return nil, ErrInvalidMemberStatus
	}

	member, err := s.memberRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.Status == status {
		return member, nil
	}

	if err := s.memberRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	member.Status = status
	return member, nil
}
