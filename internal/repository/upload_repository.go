// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"strconv"

	"annolab-go/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// UploadRepository 接口定义了分片上传相关的数据持久化操作。
type UploadRepository interface {
	// 上传总记录（GORM）
	CreateFileUploadRecord(record *model.FileUpload) error
	GetFileUploadRecord(fileMD5 string, userID uint) (*model.FileUpload, error)
	FindByMD5(fileMD5 string) (*model.FileUpload, error)
	UpdateFileUploadRecord(record *model.FileUpload) error
	DeleteFileUploadRecord(fileMD5 string, userID uint) error

	// 分片记录（GORM）
	CreatePartRecord(record *model.UploadPart) error
	GetPartRecords(fileMD5 string) ([]model.UploadPart, error)

	// 分片状态位图（Redis）
	IsPartUploaded(ctx context.Context, fileMD5 string, userID uint, partIndex int) (bool, error)
	MarkPartUploaded(ctx context.Context, fileMD5 string, userID uint, partIndex int) error
	GetUploadedParts(ctx context.Context, fileMD5 string, userID uint, totalParts int) ([]int, error)
	DeleteUploadMark(ctx context.Context, fileMD5 string, userID uint) error
}

// uploadRepository 是 UploadRepository 接口的 GORM+Redis 实现。
type uploadRepository struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB, redisClient *redis.Client) UploadRepository {
	return &uploadRepository{db: db, redisClient: redisClient}
}

// getRedisUploadKey 生成上传状态位图在 Redis 中的键。
func (r *uploadRepository) getRedisUploadKey(fileMD5 string, userID uint) string {
	return "upload:" + strconv.FormatUint(uint64(userID), 10) + ":" + fileMD5
}

// CreateFileUploadRecord 在数据库中创建一个新的文件上传总记录。
func (r *uploadRepository) CreateFileUploadRecord(record *model.FileUpload) error {
	return r.db.Create(record).Error
}

// GetFileUploadRecord 根据文件 MD5 和用户 ID 检索文件上传记录。
func (r *uploadRepository) GetFileUploadRecord(fileMD5 string, userID uint) (*model.FileUpload, error) {
	var record model.FileUpload
	err := r.db.Where("file_md5 = ? AND user_id = ?", fileMD5, userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByMD5 根据文件 MD5 查找任意用户的已完成上传记录，用于秒传判断。
func (r *uploadRepository) FindByMD5(fileMD5 string) (*model.FileUpload, error) {
	var record model.FileUpload
	err := r.db.Where("file_md5 = ? AND status = ?", fileMD5, 1).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateFileUploadRecord 更新一个文件上传记录。
func (r *uploadRepository) UpdateFileUploadRecord(record *model.FileUpload) error {
	return r.db.Save(record).Error
}

// DeleteFileUploadRecord 删除一个文件上传记录及其分片记录。
func (r *uploadRepository) DeleteFileUploadRecord(fileMD5 string, userID uint) error {
	if err := r.db.Where("file_md5 = ?", fileMD5).Delete(&model.UploadPart{}).Error; err != nil {
		return err
	}
	return r.db.Where("file_md5 = ? AND user_id = ?", fileMD5, userID).Delete(&model.FileUpload{}).Error
}

// CreatePartRecord 在数据库中创建一个新的分片记录。
func (r *uploadRepository) CreatePartRecord(record *model.UploadPart) error {
	return r.db.Create(record).Error
}

// GetPartRecords 获取指定文件已上传的所有分片信息，合并时按序读取。
func (r *uploadRepository) GetPartRecords(fileMD5 string) ([]model.UploadPart, error) {
	var parts []model.UploadPart
	err := r.db.Where("file_md5 = ?", fileMD5).Order("part_index asc").Find(&parts).Error
	return parts, err
}

// IsPartUploaded 检查某个分片是否已在 Redis 位图中标记为上传完成。
func (r *uploadRepository) IsPartUploaded(ctx context.Context, fileMD5 string, userID uint, partIndex int) (bool, error) {
	key := r.getRedisUploadKey(fileMD5, userID)
	val, err := r.redisClient.GetBit(ctx, key, int64(partIndex)).Result()
	if err != nil {
		// 键不存在时 Redis 返回 0 而非错误，这里只需处理真实错误。
		return false, err
	}
	return val == 1, nil
}

// MarkPartUploaded 在 Redis 位图中标记某个分片上传完成。
func (r *uploadRepository) MarkPartUploaded(ctx context.Context, fileMD5 string, userID uint, partIndex int) error {
	key := r.getRedisUploadKey(fileMD5, userID)
	return r.redisClient.SetBit(ctx, key, int64(partIndex), 1).Err()
}

// GetUploadedParts 从 Redis 位图中读取已上传分片的下标列表。
func (r *uploadRepository) GetUploadedParts(ctx context.Context, fileMD5 string, userID uint, totalParts int) ([]int, error) {
	if totalParts == 0 {
		return []int{}, nil
	}
	key := r.getRedisUploadKey(fileMD5, userID)
	bitmap, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []int{}, nil // 键不存在，尚无分片上传
		}
		return nil, err
	}

	uploaded := make([]int, 0)
	for i := 0; i < totalParts; i++ {
		byteIndex := i / 8
		bitIndex := i % 8
		if byteIndex < len(bitmap) && (bitmap[byteIndex]>>(7-bitIndex))&1 == 1 {
			uploaded = append(uploaded, i)
		}
	}
	return uploaded, nil
}

// DeleteUploadMark 删除 Redis 中的上传状态位图。
func (r *uploadRepository) DeleteUploadMark(ctx context.Context, fileMD5 string, userID uint) error {
	key := r.getRedisUploadKey(fileMD5, userID)
	return r.redisClient.Del(ctx, key).Err()
}
