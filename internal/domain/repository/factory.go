package repository

// Factory describes access to different domain repositories.
type Factory interface {
	Sessions() SessionRepository
	Orders() OrderRepository
	Users() UserRepository
	Catalog() CatalogRepository
}
