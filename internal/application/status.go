package application

import (
	"fmt"

	"frame-capture/internal/domain"
)

const keyHelpLine = "a:<- d:-> s:saveimg space:play/pause q:quit"

// StatusLines строки, выводимые поверх кадра
func StatusLines(st domain.SessionStatus, saveFailed bool) []string {
	lines := []string{
		fmt.Sprintf("Frame:%d/%d", st.FrameIndex, st.MaxFrameIndex),
		keyHelpLine,
		st.State.String(),
	}
	if st.LastActionWasSave {
		lines = append(lines, "Save Image !!")
	}
	if saveFailed {
		lines = append(lines, "Save Failed !!")
	}
	return lines
}
