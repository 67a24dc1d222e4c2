package seed

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/gaia-urban/gaia/backend/internal/config"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	blockSize  = 60.0 // 街区边长
	streetGap  = 20.0 // 街道宽度
	blockPitch = blockSize + streetGap
	gridSize   = 5
)

var existingUses = []string{"apartments", "house", "residential", "office", "retail", "commercial"}

var demoServices = []domain.Service{
	{Shop: "bakery"},
	{Shop: "convenience"},
	{Amenity: "supermarket"},
	{Amenity: "cafe"},
	{Amenity: "restaurant"},
	{Amenity: "pharmacy"},
}

// DemoOptions 控制示例场景的规模
type DemoOptions struct {
	Name       string
	Sites      int
	Apartments int
	Offices    int
	Schools    int
}

func DefaultDemoOptions() DemoOptions {
	return DemoOptions{
		Name:       "demo",
		Sites:      6,
		Apartments: 2,
		Offices:    1,
		Schools:    1,
	}
}

// DemoScenario 生成一个 5x5 街区的示例场景：
// 随机挑选若干街区作为待建场地，一个街区作为公园，其余街区放置现状建筑
func DemoScenario(rng *rand.Rand, opts DemoOptions) (*domain.Scenario, error) {
	buildings := opts.Apartments + opts.Offices + opts.Schools
	if buildings == 0 {
		return nil, errors.New("至少需要一栋待建建筑")
	}
	if opts.Sites < buildings {
		return nil, fmt.Errorf("场地数量 (%d) 少于建筑数量 (%d)", opts.Sites, buildings)
	}
	if opts.Sites > gridSize*gridSize-1 {
		return nil, fmt.Errorf("场地数量不能超过 %d", gridSize*gridSize-1)
	}

	s := &domain.Scenario{
		Name: opts.Name,
		Sun:  domain.Sun{Azimuth: 180, Altitude: 35},
	}

	blocks := rng.Perm(gridSize * gridSize)
	for i, block := range blocks {
		x0 := float64(block%gridSize) * blockPitch
		y0 := float64(block/gridSize) * blockPitch

		switch {
		case i < opts.Sites:
			id := fmt.Sprintf("site%d", i+1)
			s.Sites = append(s.Sites, domain.Site{ID: id, Footprint: jitteredBlock(rng, x0, y0)})
		case i == opts.Sites:
			s.Nature = append(s.Nature, domain.NatureArea{
				ID:        "park",
				Footprint: box(x0+5, y0+5, x0+blockSize-5, y0+blockSize-5),
			})
		default:
			s.Existing = append(s.Existing, existingInBlock(rng, x0, y0, i)...)
		}
	}
	s.AnchorSite = s.Sites[0].ID

	add := func(t domain.BuildingType, n int) {
		for i := 0; i < n; i++ {
			s.Buildings = append(s.Buildings, domain.BuildingSpec{
				ID:        fmt.Sprintf("%s%d", t, i+1),
				Type:      t,
				TargetGFA: float64(1500 + rng.Intn(45)*100),
			})
		}
	}
	add(domain.BuildingTypeApartment, opts.Apartments)
	add(domain.BuildingTypeOffice, opts.Offices)
	add(domain.BuildingTypeSchool, opts.Schools)

	extent := gridSize * blockPitch
	s.Barriers = []domain.Barrier{
		{Kind: domain.BarrierHighway, Line: []domain.Coord{{-streetGap, -streetGap / 2}, {extent, -streetGap / 2}}},
		{Kind: domain.BarrierRailway, Line: []domain.Coord{{extent - streetGap/2, -streetGap}, {extent - streetGap/2, extent}}},
	}
	for row := 1; row < gridSize; row++ {
		y := float64(row)*blockPitch - streetGap/2
		s.CycleWays = append(s.CycleWays, domain.CycleWay{Line: []domain.Coord{{0, y}, {extent - streetGap, y}}})
	}
	for i := 0; i < 8; i++ {
		svc := demoServices[rng.Intn(len(demoServices))]
		svc.Location = domain.Coord{rng.Float64() * extent, rng.Float64() * extent}
		s.Services = append(s.Services, svc)
	}

	return s, nil
}

func box(minX, minY, maxX, maxY float64) []domain.Coord {
	return []domain.Coord{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}

// jitteredBlock 把街区的四个角向内随机收缩，得到不规则的凸四边形
func jitteredBlock(rng *rand.Rand, x0, y0 float64) []domain.Coord {
	j := func() float64 { return rng.Float64() * 6 }
	return []domain.Coord{
		{x0 + j(), y0 + j()},
		{x0 + blockSize - j(), y0 + j()},
		{x0 + blockSize - j(), y0 + blockSize - j()},
		{x0 + j(), y0 + blockSize - j()},
	}
}

func existingInBlock(rng *rand.Rand, x0, y0 float64, n int) []domain.ExistingBuilding {
	count := 1 + rng.Intn(2)
	out := make([]domain.ExistingBuilding, 0, count)
	for k := 0; k < count; k++ {
		// 两栋建筑分别占据街区的南半部和北半部
		ymin := y0 + 4 + float64(k)*blockSize/2
		w := 20 + rng.Float64()*30
		d := 12 + rng.Float64()*10
		out = append(out, domain.ExistingBuilding{
			ID:        fmt.Sprintf("way/%d", n*10+k),
			Use:       existingUses[rng.Intn(len(existingUses))],
			Height:    round1(3 + rng.Float64()*27),
			Footprint: box(x0+4, ymin, x0+4+w, ymin+d),
		})
	}
	return out
}

// round1 保留一位小数
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// LoadScenarioFile 读取 YAML 格式的场景文件，JSON 也是合法的 YAML
func LoadScenarioFile(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &domain.Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("无法解析场景文件 %s: %w", path, err)
	}

	return s, nil
}

// EnsureInitialAdmin 确保数据库中存在初始管理员
func EnsureInitialAdmin(cfg *config.Config, repo *repository.Repository) error {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &domain.User{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(passwordHash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleAdmin,
	}
	if err := repo.CreateUser(admin); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "users_username_key" {
			// 初始管理员已经存在
			return nil
		}
		return err
	}

	return nil
}

// CreatePlanner 创建一个使用统一密码的规划师账号
func CreatePlanner(cfg *config.Config, repo *repository.Repository, n int) (*domain.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.User.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	username := fmt.Sprintf("planner%d", n)
	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fmt.Sprintf("Planner %d", n),
		Email:        username + "@" + cfg.Email.UserDomain,
		Role:         domain.RolePlanner,
	}
	if err := repo.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// CreateDemoRun 插入一个排队中的示例运行
func CreateDemoRun(repo *repository.Repository, s *domain.Scenario, createdBy int64) (*domain.Run, error) {
	run := &domain.Run{
		ID:        uuid.New(),
		Name:      s.Name,
		Status:    domain.RunStatusQueued,
		Scenario:  *s,
		CreatedBy: createdBy,
	}
	if err := repo.CreateRun(run); err != nil {
		return nil, err
	}

	return run, nil
}
