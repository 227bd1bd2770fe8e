package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
		want string
	}{
		{
			name: "empty room list",
			err:  NewEmptyRoomList("salles.ini"),
			code: ErrEmptyRoomList,
			want: "EMPTY_ROOM_LIST: no room found in salles.ini",
		},
		{
			name: "fetch failed",
			err:  NewFetchFailed("A101", fmt.Errorf("502 Bad Gateway")),
			code: ErrFetchFailed,
			want: `FETCH_FAILED: fetch failed for room "A101": 502 Bad Gateway`,
		},
		{
			name: "invalid config",
			err:  NewInvalidConfig("eol must be lf or crlf"),
			code: ErrInvalidConfig,
			want: "INVALID_CONFIG: eol must be lf or crlf",
		},
		{
			name: "internal nil cause",
			err:  NewInternal(nil),
			code: ErrInternal,
			want: "INTERNAL: internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFollowsWrapping(t *testing.T) {
	base := NewOutputFailed("out/horaire.xml", fs.ErrPermission)
	wrapped := fmt.Errorf("generate: %w", base)

	if !Is(wrapped, ErrOutputFailed) {
		t.Error("Is(wrapped, ErrOutputFailed) = false, want true")
	}
	if Is(wrapped, ErrFetchFailed) {
		t.Error("Is(wrapped, ErrFetchFailed) = true, want false")
	}
	if !stderrors.Is(wrapped, fs.ErrPermission) {
		t.Error("cause should stay reachable through Unwrap")
	}
	if Is(stderrors.New("plain"), ErrInternal) {
		t.Error("plain errors carry no code")
	}
}

func TestUploadFailedDetails(t *testing.T) {
	err := NewUploadFailed("ftp://example.org/pub", stderrors.New("530 Login incorrect"))
	if err.Details["target"] != "ftp://example.org/pub" {
		t.Errorf("Details[target] = %v", err.Details["target"])
	}
}
