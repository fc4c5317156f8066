package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

// setupIntegration starts fresh MySQL and Redis containers, connects the globals and migrates.
func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "retail_test")
	t.Setenv("DB_LOCK_WAIT_TIMEOUT_SECONDS", "5")
	t.Setenv("SEED_STOCK_LEVELS", "true")
	t.Setenv("BACKORDER_STOCK_CHECK", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func mustCreateStore(t *testing.T, ctx context.Context, code string) *models.Store {
	t.Helper()
	store, err := models.CreateStore(ctx, &models.NewStore{Code: code, Name: "Store " + code})
	if err != nil {
		t.Fatalf("CreateStore(%s): %v", code, err)
	}
	return store
}

func mustCreateVariant(t *testing.T, ctx context.Context, sku string) *models.ProductVariant {
	t.Helper()
	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{Name: "Variant " + sku, Sku: sku, SalesPrice: 10000})
	if err != nil {
		t.Fatalf("CreateProductVariant(%s): %v", sku, err)
	}
	return variant
}

func mustAddStock(t *testing.T, ctx context.Context, storeId int, variantId int, qty int) {
	t.Helper()
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := models.IncrementStockInTx(tx, storeId, variantId, qty)
		return err
	})
	if err != nil {
		t.Fatalf("add stock store=%d variant=%d: %v", storeId, variantId, err)
	}
}

func stockQty(t *testing.T, ctx context.Context, storeId int, variantId int) int {
	t.Helper()
	level, err := models.GetStockLevel(ctx, storeId, variantId)
	if err != nil {
		t.Fatalf("GetStockLevel store=%d variant=%d: %v", storeId, variantId, err)
	}
	return level.Quantity
}

func countRows(t *testing.T, ctx context.Context, model any) int64 {
	t.Helper()
	var n int64
	if err := config.GetDB().WithContext(ctx).Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retail-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retail-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=retail_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// mysqladmin ping succeeds before the TCP listener is up on the first boot; the
	// connect helper retries past that window.
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// "127.0.0.1:49154\n"
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
