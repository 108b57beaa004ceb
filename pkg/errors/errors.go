package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrTaskLocked 后台任务已被其他 worker 锁定
var ErrTaskLocked = errors.New("任务已被锁定或已处理")
