package action

import (
	"context"

	"panelkit/internal/orm"
)

const (
	DeleteName      = "delete"
	RestoreName     = "restore"
	ForceDeleteName = "forceDelete"
)

func trashed(rec orm.Record) bool {
	t, ok := rec.(orm.Trashable)
	return ok && t.Trashed()
}

// Delete removes the record. Soft-deleting models move it to the trash.
func Delete() *Action {
	return &Action{
		Name:                 DeleteName,
		Label:                Trans("actions.delete.single.label"),
		ModalHeading:         TransWithRecordTitle("actions.delete.single.modal.heading"),
		ModalDescription:     Trans("actions.delete.single.modal.description"),
		ModalSubmitLabel:     Trans("actions.delete.single.modal.actions.delete.label"),
		SuccessTitle:         Trans("actions.delete.single.messages.deleted"),
		Color:                "danger",
		GroupedIcon:          "heroicon-m-trash",
		RequiresConfirmation: true,
		Visible: func(rec orm.Record) bool {
			return rec != nil && rec.Exists() && !trashed(rec)
		},
		Effect: func(ctx context.Context, a *Action) error {
			err := a.Process(ctx, func(ctx context.Context, rec orm.Record) error {
				return rec.Delete(ctx)
			})
			if err != nil {
				return err
			}
			a.Success()
			return nil
		},
	}
}

// Restore brings a trashed record back.
func Restore() *Action {
	return &Action{
		Name:                 RestoreName,
		Label:                Trans("actions.restore.single.label"),
		ModalHeading:         TransWithRecordTitle("actions.restore.single.modal.heading"),
		ModalDescription:     Trans("actions.restore.single.modal.description"),
		ModalSubmitLabel:     Trans("actions.restore.single.modal.actions.restore.label"),
		SuccessTitle:         Trans("actions.restore.single.messages.restored"),
		FailureTitle:         Trans("actions.restore.single.messages.failed"),
		Color:                "secondary",
		GroupedIcon:          "heroicon-m-arrow-uturn-left",
		RequiresConfirmation: true,
		Visible:              trashed,
		Effect: func(ctx context.Context, a *Action) error {
			r, ok := a.Record().(orm.Restorable)
			if !ok {
				a.Failure()
				return nil
			}
			err := a.Process(ctx, func(ctx context.Context, _ orm.Record) error {
				return r.Restore(ctx)
			})
			if err != nil {
				return err
			}
			a.Success()
			return nil
		},
	}
}

// ForceDelete permanently removes a trashed record.
func ForceDelete() *Action {
	return &Action{
		Name:                 ForceDeleteName,
		Label:                Trans("actions.force_delete.single.label"),
		ModalHeading:         TransWithRecordTitle("actions.force_delete.single.modal.heading"),
		ModalDescription:     Trans("actions.force_delete.single.modal.description"),
		ModalSubmitLabel:     Trans("actions.force_delete.single.modal.actions.delete.label"),
		SuccessTitle:         Trans("actions.force_delete.single.messages.deleted"),
		Color:                "danger",
		GroupedIcon:          "heroicon-m-trash",
		RequiresConfirmation: true,
		Visible:              trashed,
		Effect: func(ctx context.Context, a *Action) error {
			err := a.Process(ctx, func(ctx context.Context, rec orm.Record) error {
				fd, ok := rec.(orm.ForceDeletable)
				if !ok {
					return ErrUnsupported
				}
				return fd.ForceDelete(ctx)
			})
			if err != nil {
				return err
			}
			a.Success()
			return nil
		},
	}
}

// RecordActions returns the default per-record actions in display order.
func RecordActions() []*Action {
	return []*Action{Delete(), Restore(), ForceDelete()}
}
