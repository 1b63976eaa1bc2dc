// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"mold-measure/internal/mold"
)

// MoldEditDialog edits the type and multiplier of one mold.
type MoldEditDialog struct {
	mold   mold.Mold
	window fyne.Window

	typeRadio       *widget.RadioGroup
	multiplierEntry *widget.Entry
	errorLabel      *widget.Label

	onSave   func(t mold.Type, multiplier float64)
	onDelete func()
}

// NewMoldEditDialog creates a dialog for m. onSave receives the edited
// values; onDelete is called after the user confirms deletion.
func NewMoldEditDialog(m mold.Mold, window fyne.Window,
	onSave func(t mold.Type, multiplier float64), onDelete func()) *MoldEditDialog {
	return &MoldEditDialog{
		mold:     m,
		window:   window,
		onSave:   onSave,
		onDelete: onDelete,
	}
}

// Show displays the dialog.
func (d *MoldEditDialog) Show() {
	content := d.createContent()

	var dlg *dialog.CustomDialog

	saveBtn := widget.NewButton("Save", func() {
		t, mult, err := d.values()
		if err != nil {
			d.errorLabel.SetText(err.Error())
			d.errorLabel.Show()
			return
		}
		if d.onSave != nil {
			d.onSave(t, mult)
		}
		dlg.Hide()
	})
	saveBtn.Importance = widget.HighImportance

	cancelBtn := widget.NewButton("Cancel", func() {
		dlg.Hide()
	})

	deleteBtn := widget.NewButton("Delete", func() {
		dialog.ShowConfirm("Delete Mold",
			fmt.Sprintf("Delete mold #%d?", d.mold.ID),
			func(confirmed bool) {
				if confirmed {
					if d.onDelete != nil {
						d.onDelete()
					}
					dlg.Hide()
				}
			}, d.window)
	})
	deleteBtn.Importance = widget.DangerImportance

	buttons := container.NewHBox(deleteBtn, container.NewHBox(), cancelBtn, saveBtn)

	dlg = dialog.NewCustomWithoutButtons(
		fmt.Sprintf("Mold #%d", d.mold.ID),
		container.NewBorder(nil, buttons, nil, nil, content),
		d.window,
	)
	dlg.Resize(fyne.NewSize(360, 260))
	dlg.Show()
}

func (d *MoldEditDialog) createContent() fyne.CanvasObject {
	labels := make([]string, len(mold.Types))
	for i, t := range mold.Types {
		labels[i] = t.Label()
	}
	d.typeRadio = widget.NewRadioGroup(labels, nil)
	d.typeRadio.Horizontal = true
	d.typeRadio.Required = true
	d.typeRadio.SetSelected(d.mold.Type.Label())

	d.multiplierEntry = widget.NewEntry()
	d.multiplierEntry.SetText(strconv.FormatFloat(d.mold.Multiplier, 'f', -1, 64))

	d.errorLabel = widget.NewLabel("")
	d.errorLabel.Importance = widget.DangerImportance
	d.errorLabel.Hide()

	form := widget.NewForm(
		widget.NewFormItem("Type", d.typeRadio),
		widget.NewFormItem("Multiplier", d.multiplierEntry),
		widget.NewFormItem("Area", widget.NewLabel(fmt.Sprintf("%.2f cm²", d.mold.AreaCm2))),
		widget.NewFormItem("Size", widget.NewLabel(d.mold.Dimensions.Format())),
	)
	return container.NewVBox(form, d.errorLabel)
}

// values reads and validates the form.
func (d *MoldEditDialog) values() (mold.Type, float64, error) {
	t, err := mold.ParseType(d.typeRadio.Selected)
	if err != nil {
		return 0, 0, err
	}
	mult, err := parseMultiplier(d.multiplierEntry.Text)
	if err != nil {
		return 0, 0, err
	}
	return t, mult, nil
}

func parseMultiplier(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil || !(v > 0) {
		return 0, mold.ErrInvalidMultiplier
	}
	return v, nil
}
