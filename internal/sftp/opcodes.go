package sftp

// SFTP v3 opcodes, draft-ietf-secsh-filexfer-02 section 3. SYMLINK is the
// highest numbered opcode this protocol version defines; extension
// packets (SSH_FXP_EXTENDED and friends) are out of scope.
const (
	opInit     = 1
	opVersion  = 2
	opOpen     = 3
	opClose    = 4
	opRead     = 5
	opWrite    = 6
	opLstat    = 7
	opFstat    = 8
	opSetstat  = 9
	opFsetstat = 10
	opOpendir  = 11
	opReaddir  = 12
	opRemove   = 13
	opMkdir    = 14
	opRmdir    = 15
	opRealpath = 16
	opStat     = 17
	opRename   = 18
	opReadlink = 19
	opSymlink  = 20

	opStatus  = 101
	opHandle  = 102
	opData    = 103
	opName    = 104
	opAttrs   = 105
)

// pflags bits carried by OPEN, draft-ietf-secsh-filexfer-02 section 6.3.
const (
	pflagRead   = 0x00000001
	pflagWrite  = 0x00000002
	pflagAppend = 0x00000004
	pflagCreat  = 0x00000008
	pflagTrunc  = 0x00000010
	pflagExcl   = 0x00000020
)
