package cache

import "fmt"

// 键语义：
// - roomKey(docID):           房间候选成员集合（Set<userId>）
// - memberKey(docID,userID):  成员心跳键（String，占位"1"，带 TTL）
// - namesKey(docID):          房间内 userId→username 映射（Hash）
// - cursorKey(docID,userID):  成员光标/选区 JSON（String，带 TTL）

const (
	keyRoomFmt   = "presence:room:%d"       // Set<userId>
	keyMemberFmt = "presence:member:%d:%d"  // String "1" with TTL
	keyNamesFmt  = "presence:room:names:%d" // Hash<userId -> username>
	keyCursorFmt = "presence:cursor:%d:%d"  // String JSON with TTL
)

func roomKey(docID uint64) string                  { return fmt.Sprintf(keyRoomFmt, docID) }
func memberKey(docID, userID uint64) string        { return fmt.Sprintf(keyMemberFmt, docID, userID) }
func namesKey(docID uint64) string                 { return fmt.Sprintf(keyNamesFmt, docID) }
func cursorKey(docID uint64, userID uint64) string { return fmt.Sprintf(keyCursorFmt, docID, userID) }
