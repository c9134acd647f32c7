package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound       = errors.New("座席が見つかりません")
	ErrSeatUnavailable    = errors.New("座席は要求された操作を受け付けられる状態ではありません")
	ErrSeatConflict       = errors.New("座席の保持ルールに違反します")
	ErrStoreUnavailable   = errors.New("座席ストアが利用できません")
	ErrSeatIDRequired     = errors.New("座席IDは必須です")
	ErrUserIDRequired     = errors.New("ユーザーIDは必須です")
	ErrSeatNumberRequired = errors.New("座席番号は必須です")
	ErrInvalidFloor       = errors.New("フロアは0以上である必要があります")
	ErrInconsistentState  = errors.New("座席の状態が不整合です")
	ErrInvalidLayout      = errors.New("座席レイアウトが不正です")
)
